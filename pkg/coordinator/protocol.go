// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coordinator implements the cuenv event coordinator: a per-
// module Unix domain socket server that multiple CLI invocations connect
// to, so a UI consumer process can observe task events from concurrently
// running producer processes. Wire messages are 4-byte big-endian
// length-prefixed JSON.
package coordinator

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// MessageType discriminates a WireMessage's payload shape.
type MessageType string

const (
	MessageRegister    MessageType = "register"
	MessageRegisterAck MessageType = "register_ack"
	MessageEvent       MessageType = "event"
	MessagePing        MessageType = "ping"
	MessagePong        MessageType = "pong"
	MessageError       MessageType = "error"
)

// ClientType distinguishes a producer (a running `cuenv task`/`cuenv ci`
// invocation emitting events) from a consumer (a UI subscribing to them).
type ClientType struct {
	Kind    string `json:"kind"` // "producer" | "consumer"
	Command string `json:"command,omitempty"`
}

// RegisterPayload is the payload of a Register message.
type RegisterPayload struct {
	ClientID   uuid.UUID  `json:"clientId"`
	ClientType ClientType `json:"clientType"`
	PID        int        `json:"pid"`
}

// WireMessage is the framed unit exchanged over the coordinator socket.
type WireMessage struct {
	Type          MessageType     `json:"msgType"`
	CorrelationID uuid.UUID       `json:"correlationId"`
	Payload       json.RawMessage `json:"payload"`
}

// maxMessageSize bounds a single frame, guarding against a malformed
// length prefix causing an unbounded allocation.
const maxMessageSize = 16 << 20 // 16 MiB

// WriteTo frames m as a 4-byte big-endian length prefix followed by its
// JSON encoding, and writes it to w.
func (m WireMessage) WriteTo(w io.Writer) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("coordinator: encoding message: %w", err)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("coordinator: writing length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("coordinator: writing message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed WireMessage from r.
func ReadMessage(r *bufio.Reader) (WireMessage, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return WireMessage{}, err
	}

	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxMessageSize {
		return WireMessage{}, fmt.Errorf("coordinator: message size %d exceeds maximum %d", size, maxMessageSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return WireMessage{}, fmt.Errorf("coordinator: reading message body: %w", err)
	}

	var msg WireMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return WireMessage{}, fmt.Errorf("coordinator: decoding message: %w", err)
	}
	return msg, nil
}

func newMessage(t MessageType, correlationID uuid.UUID, payload any) (WireMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WireMessage{}, err
	}
	return WireMessage{Type: t, CorrelationID: correlationID, Payload: raw}, nil
}

// NewRegister builds a Register message for clientID.
func NewRegister(clientID uuid.UUID, clientType ClientType, pid int) (WireMessage, error) {
	return newMessage(MessageRegister, clientID, RegisterPayload{
		ClientID:   clientID,
		ClientType: clientType,
		PID:        pid,
	})
}

// RegisterAckPayload is the payload of a RegisterAck message.
type RegisterAckPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewRegisterAck builds a RegisterAck message in reply to clientID.
func NewRegisterAck(clientID uuid.UUID, ok bool, errMsg string) (WireMessage, error) {
	return newMessage(MessageRegisterAck, clientID, RegisterAckPayload{OK: ok, Error: errMsg})
}

// NewPing builds a Ping message with a fresh correlation id.
func NewPing() (WireMessage, error) {
	return newMessage(MessagePing, uuid.New(), struct{}{})
}

// NewPong replies to correlationID with a Pong.
func NewPong(correlationID uuid.UUID) (WireMessage, error) {
	return newMessage(MessagePong, correlationID, struct{}{})
}

// NewEvent wraps an arbitrary event payload (see pkg/report or a task
// runner's own event shape) in an Event message.
func NewEvent(event any) (WireMessage, error) {
	return newMessage(MessageEvent, uuid.New(), event)
}

// DecodeEvent unmarshals m's payload into dst. dst must be a pointer.
func (m WireMessage) DecodeEvent(dst any) error {
	return json.Unmarshal(m.Payload, dst)
}
