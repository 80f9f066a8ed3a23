// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config controls coordinator server behavior. Defaults mirror the
// original implementation's tuning: a 5-minute idle auto-exit, a 64-
// client cap, a 30s heartbeat, and a 1000-event broadcast buffer.
type Config struct {
	IdleTimeout       time.Duration
	MaxClients        int
	HeartbeatInterval time.Duration
	EventBufferSize   int
}

// DefaultConfig returns the coordinator's default tuning.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       5 * time.Minute,
		MaxClients:        64,
		HeartbeatInterval: 30 * time.Second,
		EventBufferSize:   1000,
	}
}

type connectedClient struct {
	id         uuid.UUID
	clientType ClientType
	pid        int
	connected  time.Time
	send       chan WireMessage
	isConsumer bool
}

// Server is the EventCoordinator: a Unix-socket event broker that
// receives events from producer connections and fans them out to
// consumer connections.
type Server struct {
	config     Config
	moduleRoot string

	mu      sync.RWMutex
	clients map[uuid.UUID]*connectedClient

	broadcast chan any // fanned out to every consumer's send channel

	subsMu sync.Mutex
	subs   []chan any
}

// NewServer creates a Server for moduleRoot using cfg.
func NewServer(moduleRoot string, cfg Config) *Server {
	return &Server{
		config:     cfg,
		moduleRoot: moduleRoot,
		clients:    make(map[uuid.UUID]*connectedClient),
		broadcast:  make(chan any, cfg.EventBufferSize),
	}
}

// Run listens on moduleRoot's coordinator socket until ctx is canceled or
// the idle timeout elapses with no connected clients. It removes any
// stale socket file before binding, and writes its own PID file for
// discovery.
func (s *Server) Run(ctx context.Context) error {
	if err := ensureRuntimeDir(s.moduleRoot); err != nil {
		return fmt.Errorf("coordinator: preparing runtime dir: %w", err)
	}

	socketPath := SocketPath(s.moduleRoot)
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("coordinator: binding %q: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)
	defer os.Remove(PIDPath(s.moduleRoot))

	if err := os.WriteFile(PIDPath(s.moduleRoot), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("coordinator: writing pid file: %w", err)
	}

	slog.Info("coordinator listening", "socket", socketPath)

	go s.fanOutBroadcast(ctx)

	acceptCh := make(chan net.Conn)
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				acceptErrCh <- err
				return
			}
			acceptCh <- conn
		}
	}()

	lastActivity := time.Now()
	idleCheck := time.NewTicker(10 * time.Second)
	defer idleCheck.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("coordinator shutdown signal received")
			return nil

		case conn := <-acceptCh:
			lastActivity = time.Now()
			go s.handleConnection(ctx, conn)

		case err := <-acceptErrCh:
			return fmt.Errorf("coordinator: accept failed: %w", err)

		case <-idleCheck.C:
			if s.config.IdleTimeout <= 0 {
				continue
			}
			s.mu.RLock()
			count := len(s.clients)
			s.mu.RUnlock()
			if count > 0 {
				lastActivity = time.Now()
			} else if time.Since(lastActivity) > s.config.IdleTimeout {
				slog.Info("coordinator idle timeout reached, shutting down")
				return nil
			}
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	regMsg, err := ReadMessage(reader)
	if err != nil {
		slog.Debug("coordinator: failed to read registration", "error", err)
		return
	}
	if regMsg.Type != MessageRegister {
		errMsg, _ := newMessage(MessageError, regMsg.CorrelationID, map[string]string{"error": "expected registration message"})
		_ = errMsg.WriteTo(conn)
		return
	}

	var reg RegisterPayload
	if err := regMsg.DecodeEvent(&reg); err != nil {
		slog.Debug("coordinator: malformed registration", "error", err)
		return
	}

	s.mu.RLock()
	full := len(s.clients) >= s.config.MaxClients
	s.mu.RUnlock()
	if full {
		ack, _ := NewRegisterAck(reg.ClientID, false, "max clients reached")
		_ = ack.WriteTo(conn)
		return
	}

	client := &connectedClient{
		id:         reg.ClientID,
		clientType: reg.ClientType,
		pid:        reg.PID,
		connected:  time.Now(),
		send:       make(chan WireMessage, 64),
		isConsumer: reg.ClientType.Kind == "consumer",
	}

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	slog.Debug("client registered", "clientId", client.id, "clientType", client.clientType.Kind)

	ack, _ := NewRegisterAck(client.id, true, "")
	if err := ack.WriteTo(conn); err != nil {
		s.removeClient(client.id)
		return
	}

	var sub chan any
	if client.isConsumer {
		sub = s.subscribe()
		defer s.unsubscribe(sub)
	}

	var lastPong atomic.Int64
	lastPong.Store(time.Now().UnixNano())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range client.send {
			if err := msg.WriteTo(conn); err != nil {
				return
			}
		}
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			msg, err := ReadMessage(reader)
			if err != nil {
				if err != io.EOF {
					slog.Debug("coordinator: read error", "error", err)
				}
				return
			}
			switch msg.Type {
			case MessageEvent:
				var payload any
				if err := msg.DecodeEvent(&payload); err == nil {
					select {
					case s.broadcast <- payload:
					default:
						slog.Warn("coordinator: broadcast buffer full, dropping event")
					}
				}
			case MessagePing:
				pong, _ := NewPong(msg.CorrelationID)
				select {
				case client.send <- pong:
				default:
				}
			case MessagePong:
				lastPong.Store(time.Now().UnixNano())
			}
		}
	}()

	// heartbeatMissedFactor bounds how many heartbeat intervals a client
	// may go without replying to a Ping before it's considered dead.
	const heartbeatMissedFactor = 2

	var heartbeatC <-chan time.Time
	if s.config.HeartbeatInterval > 0 {
		heartbeat := time.NewTicker(s.config.HeartbeatInterval)
		defer heartbeat.Stop()
		heartbeatC = heartbeat.C
	}

	for {
		select {
		case <-ctx.Done():
			close(client.send)
			<-writerDone
			s.removeClient(client.id)
			return
		case <-readDone:
			close(client.send)
			<-writerDone
			s.removeClient(client.id)
			return
		case <-heartbeatC:
			if time.Since(time.Unix(0, lastPong.Load())) > heartbeatMissedFactor*s.config.HeartbeatInterval {
				slog.Warn("coordinator: evicting unresponsive client", "clientId", client.id)
				close(client.send)
				<-writerDone
				s.removeClient(client.id)
				return
			}
			ping, err := NewPing()
			if err == nil {
				select {
				case client.send <- ping:
				default:
				}
			}
		case event := <-sub:
			if event == nil {
				continue
			}
			evMsg, err := NewEvent(event)
			if err == nil {
				select {
				case client.send <- evMsg:
				default:
					slog.Warn("coordinator: client send buffer full, dropping event", "clientId", client.id)
				}
			}
		}
	}
}

func (s *Server) removeClient(id uuid.UUID) {
	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) subscribe() chan any {
	ch := make(chan any, s.config.EventBufferSize)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(target chan any) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, ch := range s.subs {
		if ch == target {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// fanOutBroadcast drains s.broadcast and forwards every event to every
// currently subscribed consumer.
func (s *Server) fanOutBroadcast(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.broadcast:
			s.subsMu.Lock()
			subs := append([]chan any(nil), s.subs...)
			s.subsMu.Unlock()

			for _, ch := range subs {
				select {
				case ch <- event:
				default:
				}
			}
		}
	}
}
