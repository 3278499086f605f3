// ABOUTME: Tests for push protocol helpers
// ABOUTME: Covers payload decoding, audio frames and terminal states
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestMessageDecode(t *testing.T) {
	raw, err := json.Marshal(Message{
		Type:    TypePushStart,
		Payload: PushStart{Name: "a.wav", Format: "wav", Gain: 0.5, Position: &Position{X: 2}},
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	// Payload comes back as a generic map after a round trip
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	var start PushStart
	if err := msg.Decode(&start); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if start.Name != "a.wav" || start.Gain != 0.5 || start.Position == nil || start.Position.X != 2 {
		t.Errorf("unexpected payload %+v", start)
	}
}

func TestAudioChunk(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	frame := CreateAudioChunk(data)
	if frame[0] != AudioChunkMessageType {
		t.Fatalf("expected type byte %d, got %d", AudioChunkMessageType, frame[0])
	}

	got, err := ParseAudioChunk(frame)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %v, got %v", data, got)
	}

	if _, err := ParseAudioChunk(nil); !errors.Is(err, ErrShortChunk) {
		t.Errorf("expected ErrShortChunk, got %v", err)
	}
	if _, err := ParseAudioChunk([]byte{9, 1}); err == nil {
		t.Error("expected unknown type to fail")
	}
}

func TestPushStateTerminal(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{StatePlaying, false},
		{StatePaused, false},
		{StateStopped, true},
		{StateEnded, true},
		{StateFailed, true},
		{StateStalled, true},
	}
	for _, tt := range tests {
		if got := (PushState{State: tt.state}).Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
