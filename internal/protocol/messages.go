// ABOUTME: Push protocol message type definitions
// ABOUTME: JSON control messages and binary audio frames exchanged over the websocket
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Version is bumped on incompatible message changes
	Version = 1

	// AudioChunkMessageType prefixes every binary frame carrying audio bytes
	AudioChunkMessageType = 1
)

// Message types
const (
	TypeClientHello  = "client/hello"
	TypeServerHello  = "server/hello"
	TypeServerError  = "server/error"
	TypePushStart    = "push/start"
	TypePushAccepted = "push/accepted"
	TypePushEnd      = "push/end"
	TypePushStop     = "push/stop"
	TypePushState    = "push/state"
)

// Push states reported by the server
const (
	StatePlaying = "playing"
	StatePaused  = "paused"
	StateStopped = "stopped"
	StateEnded   = "ended"
	StateFailed  = "failed"
	StateStalled = "stalled"
)

// ErrShortChunk is returned for binary frames without a type byte
var ErrShortChunk = errors.New("binary frame too short")

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Decode re-marshals Payload into v
func (m Message) Decode(v interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", m.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", m.Type, err)
	}
	return nil
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID   string `json:"server_id"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	Backend    string `json:"backend"`
	SampleRate int    `json:"sample_rate"`
}

// ServerError rejects a request
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Position places a pushed sound in listener space
type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// PushStart opens a push session. Format is a decoder format name ("wav",
// "mp3", "raw", ...). Channels and SampleRate are only read for raw PCM.
type PushStart struct {
	Name       string    `json:"name"`
	Format     string    `json:"format"`
	Channels   int       `json:"channels,omitempty"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Gain       float32   `json:"gain,omitempty"`
	Pitch      float32   `json:"pitch,omitempty"`
	Loop       bool      `json:"loop,omitempty"`
	Position   *Position `json:"position,omitempty"`
}

// PushAccepted confirms a push/start
type PushAccepted struct {
	SessionID string `json:"session_id"`
	EmitterID string `json:"emitter_id"`
}

// PushState forwards emitter events to the pushing client
type PushState struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
}

// Terminal reports whether no further audio will play for the session
func (s PushState) Terminal() bool {
	switch s.State {
	case StateEnded, StateFailed, StateStalled, StateStopped:
		return true
	}
	return false
}

// CreateAudioChunk creates a binary audio frame: [type:1][audio_data:N]
func CreateAudioChunk(audioData []byte) []byte {
	chunk := make([]byte, 1+len(audioData))
	chunk[0] = AudioChunkMessageType
	copy(chunk[1:], audioData)
	return chunk
}

// ParseAudioChunk returns the audio bytes of a binary frame
func ParseAudioChunk(frame []byte) ([]byte, error) {
	if len(frame) < 1 {
		return nil, ErrShortChunk
	}
	if frame[0] != AudioChunkMessageType {
		return nil, fmt.Errorf("unknown binary message type: %d", frame[0])
	}
	return frame[1:], nil
}
