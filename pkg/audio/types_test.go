// ABOUTME: Tests for audio type helpers
// ABOUTME: Tests clamping, saturation and vector math
package audio

import (
	"math"
	"testing"
)

func TestClampGain(t *testing.T) {
	tests := []struct {
		in   float32
		want float32
	}{
		{-1, 0},
		{0, 0},
		{1, 1},
		{4, 4},
		{10, 4},
	}

	for _, tt := range tests {
		if got := ClampGain(tt.in); got != tt.want {
			t.Errorf("ClampGain(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClampPitch(t *testing.T) {
	tests := []struct {
		in   float32
		want float32
	}{
		{0, 0.25},
		{0.1, 0.25},
		{0.25, 0.25},
		{1, 1},
		{3.5, 3.5},
		{8, 4},
	}

	for _, tt := range tests {
		if got := ClampPitch(tt.in); got != tt.want {
			t.Errorf("ClampPitch(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSaturateInt16(t *testing.T) {
	tests := []struct {
		in   int32
		want int16
	}{
		{0, 0},
		{32767, 32767},
		{32768, 32767},
		{100000, 32767},
		{-32768, -32768},
		{-32769, -32768},
		{-100000, -32768},
		{1234, 1234},
	}

	for _, tt := range tests {
		if got := SaturateInt16(tt.in); got != tt.want {
			t.Errorf("SaturateInt16(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFloatToInt16(t *testing.T) {
	if got := FloatToInt16(1.5); got != math.MaxInt16 {
		t.Errorf("expected clip to %d, got %d", math.MaxInt16, got)
	}
	if got := FloatToInt16(-1); got != math.MinInt16 {
		t.Errorf("expected %d, got %d", math.MinInt16, got)
	}
	if got := FloatToInt16(0.5); got != 16384 {
		t.Errorf("expected 16384, got %d", got)
	}
}

func TestVectorMath(t *testing.T) {
	l := DefaultListener()

	right := l.LookAt.Cross(l.Up)
	if right.X != 1 || right.Y != 0 || right.Z != 0 {
		t.Errorf("expected right vector (1,0,0), got %+v", right)
	}

	v := Vector3{3, 4, 0}
	if v.Length() != 5 {
		t.Errorf("expected length 5, got %v", v.Length())
	}

	d := Vector3{1, 1, 1}.Sub(Vector3{1, 0, 1})
	if d != (Vector3{0, 1, 0}) {
		t.Errorf("unexpected difference %+v", d)
	}
}

func TestTrackParamsSizes(t *testing.T) {
	p := TrackParams{Channels: 2, SampleRate: 44100, BitsPerSample: 16}

	if p.FrameSize() != 4 {
		t.Errorf("expected frame size 4, got %d", p.FrameSize())
	}

	// 0.0625s at 44100Hz = 2756 frames
	if got := p.BytesForDuration(0.0625); got != 2756*4 {
		t.Errorf("expected %d bytes, got %d", 2756*4, got)
	}
}

func TestStatusString(t *testing.T) {
	if WaitData.String() != "wait-data" {
		t.Errorf("unexpected string %q", WaitData.String())
	}
	if Status(42).String() != "status(42)" {
		t.Errorf("unexpected string %q", Status(42).String())
	}
}
