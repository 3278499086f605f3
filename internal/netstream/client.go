// ABOUTME: Websocket push client streaming audio files to a skyaudio server
// ABOUTME: Handles handshake, paced chunk upload and push state tracking
package netstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/skylicht-lab/skyaudio/internal/protocol"
	"github.com/skylicht-lab/skyaudio/internal/version"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
)

const (
	DefaultChunkSize = 16 * 1024
	handshakeTimeout = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrPushRejected = errors.New("push rejected by server")
)

// ClientConfig holds push client configuration
type ClientConfig struct {
	ServerAddr string
	Path       string
	ClientID   string
	Name       string
	ChunkSize  int
	// ChunkInterval paces uploads; 0 sends as fast as the socket allows
	ChunkInterval time.Duration
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.ClientID == "" {
		c.ClientID = uuid.New().String()
	}
	if c.Name == "" {
		c.Name = version.Product + "-push"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	return c
}

// Client pushes audio to a server over one websocket
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	mu     sync.RWMutex
	// writeMu serialises frames; gorilla allows one concurrent writer
	writeMu sync.Mutex

	// Server replies
	Accepted chan protocol.PushAccepted
	States   chan protocol.PushState
	Errors   chan protocol.ServerError

	hello     protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a push client
func NewClient(config ClientConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:   config.withDefaults(),
		Accepted: make(chan protocol.PushAccepted, 1),
		States:   make(chan protocol.PushState, 16),
		Errors:   make(chan protocol.ServerError, 4),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect dials the server and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := c.sendJSON(protocol.TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send %s: %w", protocol.TypeClientHello, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", protocol.TypeServerHello, err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", protocol.TypeServerHello, err)
	}
	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}
	if err := msg.Decode(&c.hello); err != nil {
		return err
	}

	log.Printf("Handshake complete with %s (%s output, %dHz)", c.hello.Name, c.hello.Backend, c.hello.SampleRate)
	return nil
}

// ServerHello returns what the server reported during the handshake
func (c *Client) ServerHello() protocol.ServerHello {
	return c.hello
}

func (c *Client) sendJSON(msgType string, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload})
}

func (c *Client) sendAudio(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, protocol.CreateAudioChunk(data))
}

// readMessages routes server replies to the client channels
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				log.Printf("Read error: %v", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			c.handleJSONMessage(data)
		}
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypePushAccepted:
		var acc protocol.PushAccepted
		if err := msg.Decode(&acc); err != nil {
			log.Printf("%v", err)
			return
		}
		select {
		case c.Accepted <- acc:
		case <-c.ctx.Done():
		}

	case protocol.TypePushState:
		var state protocol.PushState
		if err := msg.Decode(&state); err != nil {
			log.Printf("%v", err)
			return
		}
		select {
		case c.States <- state:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerError:
		var serr protocol.ServerError
		if err := msg.Decode(&serr); err != nil {
			log.Printf("%v", err)
			return
		}
		log.Printf("Server error: %s: %s", serr.Error, serr.Message)
		select {
		case c.Errors <- serr:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Push uploads everything r yields as one push and waits until the server
// reports the push finished. The returned state is the terminal one.
func (c *Client) Push(ctx context.Context, r io.Reader, start protocol.PushStart) (protocol.PushState, error) {
	if err := c.sendJSON(protocol.TypePushStart, start); err != nil {
		return protocol.PushState{}, fmt.Errorf("failed to send %s: %w", protocol.TypePushStart, err)
	}

	select {
	case acc := <-c.Accepted:
		log.Printf("Push accepted: session %s, emitter %s", acc.SessionID, acc.EmitterID)
	case serr := <-c.Errors:
		return protocol.PushState{}, fmt.Errorf("%w: %s", ErrPushRejected, serr.Message)
	case <-ctx.Done():
		return protocol.PushState{}, ctx.Err()
	case <-c.ctx.Done():
		return protocol.PushState{}, ErrNotConnected
	}

	sent, final, err := c.upload(ctx, r)
	if err != nil {
		return protocol.PushState{}, err
	}
	log.Printf("Uploaded %d bytes", sent)
	if final != nil {
		return *final, nil
	}

	if err := c.sendJSON(protocol.TypePushEnd, struct{}{}); err != nil {
		return protocol.PushState{}, fmt.Errorf("failed to send %s: %w", protocol.TypePushEnd, err)
	}

	return c.WaitDone(ctx)
}

// upload sends r in ChunkSize frames, paced by ChunkInterval. A terminal
// state arriving meanwhile ends the upload early.
func (c *Client) upload(ctx context.Context, r io.Reader) (int64, *protocol.PushState, error) {
	buf := make([]byte, c.config.ChunkSize)

	var tick <-chan time.Time
	if c.config.ChunkInterval > 0 {
		ticker := time.NewTicker(c.config.ChunkInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var sent int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if werr := c.sendAudio(buf[:n]); werr != nil {
				return sent, nil, fmt.Errorf("failed to send audio: %w", werr)
			}
			sent += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return sent, nil, nil
		}
		if err != nil {
			return sent, nil, fmt.Errorf("failed to read audio: %w", err)
		}

		select {
		case state := <-c.States:
			switch {
			case state.State == protocol.StateFailed || state.State == protocol.StateStalled:
				return sent, nil, fmt.Errorf("push %s: %s", state.State, state.Error)
			case state.Terminal():
				return sent, &state, nil
			}
		default:
		}

		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
				return sent, nil, ctx.Err()
			}
		} else if ctx.Err() != nil {
			return sent, nil, ctx.Err()
		}
	}
}

// WaitDone blocks until the server reports a terminal push state
func (c *Client) WaitDone(ctx context.Context) (protocol.PushState, error) {
	for {
		select {
		case state := <-c.States:
			if !state.Terminal() {
				continue
			}
			if state.State == protocol.StateEnded || state.State == protocol.StateStopped {
				return state, nil
			}
			return state, fmt.Errorf("push %s: %s", state.State, state.Error)
		case <-ctx.Done():
			return protocol.PushState{}, ctx.Err()
		case <-c.ctx.Done():
			return protocol.PushState{}, ErrNotConnected
		}
	}
}

// PushFile pushes a local file, picking the format from its extension
func (c *Client) PushFile(ctx context.Context, path string) (protocol.PushState, error) {
	f, err := os.Open(path)
	if err != nil {
		return protocol.PushState{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return c.Push(ctx, f, protocol.PushStart{
		Name:   filepath.Base(path),
		Format: decode.FormatFromName(path).String(),
	})
}

// StopPush asks the server to drop the current push
func (c *Client) StopPush() error {
	return c.sendJSON(protocol.TypePushStop, struct{}{})
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
