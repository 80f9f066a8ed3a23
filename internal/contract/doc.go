// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contract provides environment-tunable soft limits shared across
// cuenv's scheduler and cache packages.
//
// # Configuration via environment
//
//	export CUENV_CACHE_MAX_BYTES=5368709120  # 5 GiB
//	export CUENV_MAX_PARALLEL=8
//
// If unset, CacheMaxBytes falls back to DefaultCacheMaxBytes and
// MaxParallel falls back to runtime.NumCPU().
package contract
