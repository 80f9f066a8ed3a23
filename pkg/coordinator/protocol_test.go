// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestWireMessage_RoundTrip(t *testing.T) {
	msg, err := NewRegister(uuid.New(), ClientType{Kind: "producer"}, 123)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, msg.WriteTo(&buf))

	got, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, MessageRegister, got.Type)

	var payload RegisterPayload
	require.NoError(t, got.DecodeEvent(&payload))
	require.Equal(t, 123, payload.PID)
}

func TestWireMessage_RegisterAck(t *testing.T) {
	clientID := uuid.New()
	msg, err := NewRegisterAck(clientID, false, "max clients reached")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, msg.WriteTo(&buf))

	got, err := ReadMessage(bufio.NewReader(&buf))
	require.NoError(t, err)

	var payload RegisterAckPayload
	require.NoError(t, got.DecodeEvent(&payload))
	require.False(t, payload.OK)
	require.Equal(t, "max clients reached", payload.Error)
}

func TestReadMessage_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // huge length prefix

	_, err := ReadMessage(bufio.NewReader(&buf))
	require.Error(t, err)
}

func TestMultipleMessages_SequentialFraming(t *testing.T) {
	var buf bytes.Buffer

	ping, err := NewPing()
	require.NoError(t, err)
	require.NoError(t, ping.WriteTo(&buf))

	pong, err := NewPong(ping.CorrelationID)
	require.NoError(t, err)
	require.NoError(t, pong.WriteTo(&buf))

	reader := bufio.NewReader(&buf)

	got1, err := ReadMessage(reader)
	require.NoError(t, err)
	require.Equal(t, MessagePing, got1.Type)

	got2, err := ReadMessage(reader)
	require.NoError(t, err)
	require.Equal(t, MessagePong, got2.Type)
	require.Equal(t, ping.CorrelationID, got2.CorrelationID)
}
