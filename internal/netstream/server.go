// ABOUTME: Websocket push server feeding remote audio into engine emitters
// ABOUTME: Each connection owns a session with an online stream and one emitter
package netstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skylicht-lab/skyaudio/internal/discovery"
	"github.com/skylicht-lab/skyaudio/internal/protocol"
	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
	"github.com/skylicht-lab/skyaudio/pkg/engine"
)

const (
	DefaultPort = 8928
	DefaultPath = "/skyaudio"

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// ErrSendBufferFull is returned when a session's outgoing queue is full
var ErrSendBufferFull = errors.New("session send buffer full")

// Config holds server configuration
type Config struct {
	Port       int
	Path       string
	Name       string
	EnableMDNS bool
	Debug      bool
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Name == "" {
		c.Name = "skyaudio"
	}
	return c
}

// Server accepts push sessions and plays them through an engine
type Server struct {
	config   Config
	serverID string
	engine   *engine.Engine

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Session is one connected pushing client
type Session struct {
	ID   string
	Name string
	Conn *websocket.Conn

	mu       sync.Mutex
	stream   *stream.OnlineStream
	emitter  *engine.Emitter
	received int64

	sendChan chan interface{}
	closed   bool
}

// Emitter returns the emitter of the active push, nil between pushes
func (s *Session) Emitter() *engine.Emitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitter
}

// Received is the number of audio bytes received for the active push
func (s *Session) Received() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// New creates a server that plays into eng. Route the engine's events to
// HandleEvent so clients learn when their push ends.
func New(config Config, eng *engine.Engine) *Server {
	s := &Server{
		config:   config.withDefaults(),
		serverID: uuid.New().String(),
		engine:   eng,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Push clients are native programs on the local network
			CheckOrigin: func(r *http.Request) bool {
				if origin := r.Header.Get("Origin"); origin != "" {
					log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		sessions: make(map[string]*Session),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(s.config.Path, s.handleWebSocket)
	return s
}

// Handler exposes the websocket endpoint for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Printf("Push server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        s.config.Path,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	log.Printf("WebSocket server listening on %s%s", addr, s.config.Path)

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.sessionsMu.RLock()
	for _, sess := range s.sessions {
		sess.Conn.Close()
	}
	s.sessionsMu.RUnlock()

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop asks Start to return
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Sessions returns a snapshot of connected sessions
func (s *Server) Sessions() []*Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// HandleEvent forwards an engine event to the session owning the emitter
func (s *Server) HandleEvent(ev engine.Event) {
	state, ok := pushState(ev.Type)
	if !ok {
		return
	}

	s.sessionsMu.RLock()
	var target *Session
	for _, sess := range s.sessions {
		if em := sess.Emitter(); em != nil && em.ID() == ev.EmitterID {
			target = sess
			break
		}
	}
	s.sessionsMu.RUnlock()

	if target == nil {
		return
	}

	msg := protocol.PushState{SessionID: target.ID, State: state}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	if err := s.sendMessage(target, protocol.TypePushState, msg); err != nil {
		log.Printf("Error sending push state to %s: %v", target.Name, err)
	}
}

func pushState(t engine.EventType) (string, bool) {
	switch t {
	case engine.EventPlaying:
		return protocol.StatePlaying, true
	case engine.EventPaused:
		return protocol.StatePaused, true
	case engine.EventStopped:
		return protocol.StateStopped, true
	case engine.EventEndTrack:
		return protocol.StateEnded, true
	case engine.EventDecodeFailed:
		return protocol.StateFailed, true
	case engine.EventStalled:
		return protocol.StateStalled, true
	}
	return "", false
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection runs the handshake and then the read loop of a session
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected %s, got %s", protocol.TypeClientHello, msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := msg.Decode(&hello); err != nil {
		log.Printf("Error reading client hello: %v", err)
		return
	}
	if hello.Name == "" {
		log.Printf("Client hello missing Name")
		return
	}

	sess := &Session{
		ID:       uuid.New().String(),
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, 100),
	}

	s.sessionsMu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionsMu.Unlock()

	log.Printf("Client hello: %s (ID: %s, session %s)", hello.Name, hello.ClientID, sess.ID)

	writerDone := make(chan struct{})
	defer func() {
		s.sessionsMu.Lock()
		delete(s.sessions, sess.ID)
		s.sessionsMu.Unlock()

		s.endPush(sess)
		sess.mu.Lock()
		sess.closed = true
		close(sess.sendChan)
		sess.mu.Unlock()
		<-writerDone
		log.Printf("Client disconnected: %s", sess.Name)
	}()

	p := s.engine.Driver()
	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
	}
	if p != nil {
		serverHello.Backend = p.Name()
		serverHello.SampleRate = p.SourceParam().SampleRate
	}
	if err := s.sendMessage(sess, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		close(writerDone)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.sessionWriter(sess)
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handleAudio(sess, data)
		case websocket.TextMessage:
			s.handleClientMessage(sess, data)
		}
	}
}

// sessionWriter sends queued messages to the client
func (s *Server) sessionWriter(sess *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sess.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			sess.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sess.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing text message: %v", err)
				drain(sess.sendChan)
				return
			}

		case <-ticker.C:
			if err := sess.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				drain(sess.sendChan)
				return
			}
		}
	}
}

// drain discards messages until the channel is closed
func drain(ch chan interface{}) {
	for range ch {
	}
}

// handleClientMessage processes control messages from clients
func (s *Server) handleClientMessage(sess *Session, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] %s from %s", msg.Type, sess.Name)
	}

	switch msg.Type {
	case protocol.TypePushStart:
		var start protocol.PushStart
		if err := msg.Decode(&start); err != nil {
			s.sendError(sess, "bad_request", err.Error())
			return
		}
		if err := s.startPush(sess, start); err != nil {
			log.Printf("Push from %s rejected: %v", sess.Name, err)
			s.sendError(sess, "push_rejected", err.Error())
		}
	case protocol.TypePushEnd:
		sess.mu.Lock()
		if sess.stream != nil {
			sess.stream.SetComplete()
			log.Printf("Push from %s complete: %d bytes", sess.Name, sess.received)
		}
		sess.mu.Unlock()
	case protocol.TypePushStop:
		s.endPush(sess)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// startPush replaces any running push with a new stream and emitter
func (s *Server) startPush(sess *Session, start protocol.PushStart) error {
	format, err := decode.ParseFormat(start.Format)
	if err != nil {
		return err
	}
	if format == decode.FormatRaw && (start.Channels < 1 || start.SampleRate <= 0) {
		return fmt.Errorf("raw push needs channels and sample_rate")
	}

	s.endPush(sess)

	online := s.engine.CreateOnlineStream()
	var em *engine.Emitter
	params := audio.TrackParams{Channels: start.Channels, SampleRate: start.SampleRate}
	switch {
	case format == decode.FormatRaw && !start.Loop:
		em = s.engine.CreateLiveEmitter(online, params)
	case format == decode.FormatRaw:
		em = s.engine.CreateRawEmitter(online, params)
	default:
		em = s.engine.CreateEmitter(online, format)
	}

	if start.Gain > 0 {
		em.SetGain(start.Gain)
	}
	if start.Pitch > 0 {
		em.SetPitch(start.Pitch)
	}
	em.SetLoop(start.Loop)
	if start.Position != nil {
		em.SetPosition(audio.Vector3{X: start.Position.X, Y: start.Position.Y, Z: start.Position.Z})
	}

	sess.mu.Lock()
	sess.stream = online
	sess.emitter = em
	sess.received = 0
	sess.mu.Unlock()

	log.Printf("Push from %s started: %q as %s (emitter %s)", sess.Name, start.Name, format, em.ID())

	if err := s.sendMessage(sess, protocol.TypePushAccepted, protocol.PushAccepted{
		SessionID: sess.ID,
		EmitterID: em.ID().String(),
	}); err != nil {
		return err
	}

	em.Play()
	return nil
}

// endPush stops and destroys the session's emitter
func (s *Server) endPush(sess *Session) {
	sess.mu.Lock()
	em := sess.emitter
	sess.emitter = nil
	sess.stream = nil
	sess.mu.Unlock()

	if em == nil {
		return
	}
	em.StopStream()
	s.engine.DestroyEmitter(em)
}

// handleAudio appends a binary frame to the active push
func (s *Server) handleAudio(sess *Session, frame []byte) {
	data, err := protocol.ParseAudioChunk(frame)
	if err != nil {
		log.Printf("Invalid audio frame from %s: %v", sess.Name, err)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stream == nil {
		if s.config.Debug {
			log.Printf("[DEBUG] Dropping %d bytes from %s: no active push", len(data), sess.Name)
		}
		return
	}
	sess.stream.Write(data)
	sess.received += int64(len(data))
}

func (s *Server) sendError(sess *Session, code, message string) {
	if err := s.sendMessage(sess, protocol.TypeServerError, protocol.ServerError{Error: code, Message: message}); err != nil {
		log.Printf("Error sending error to %s: %v", sess.Name, err)
	}
}

// sendMessage queues a JSON message for a session
func (s *Server) sendMessage(sess *Session, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return net.ErrClosed
	}
	select {
	case sess.sendChan <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}
