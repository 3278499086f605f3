// ABOUTME: Audio type definitions
// ABOUTME: Defines decode status, track parameters, listener pose and sample helpers
package audio

import (
	"fmt"
	"math"
)

const (
	// Gain and pitch limits enforced by every setter
	MinGain  = 0.0
	MaxGain  = 4.0
	MinPitch = 0.25
	MaxPitch = 4.0

	// Output is always interleaved signed 16-bit
	BitsPerSample = 16
)

// Status is the outcome of a decode step
type Status int

const (
	Success Status = iota
	WaitData
	EndStream
	Failed
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case WaitData:
		return "wait-data"
	case EndStream:
		return "end-stream"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// TrackParams describes decoded PCM produced by a decoder
type TrackParams struct {
	Channels      int
	SampleRate    int
	BitsPerSample int   // always 16 once a decoder is initialized
	NumSamples    int64 // frames per channel, 0 when unknown
}

// FrameSize returns the byte size of one interleaved frame
func (p TrackParams) FrameSize() int {
	return p.Channels * p.BitsPerSample / 8
}

// BytesForDuration returns the byte size of seconds of audio, frame aligned
func (p TrackParams) BytesForDuration(seconds float64) int {
	frames := int(seconds * float64(p.SampleRate))
	return frames * p.FrameSize()
}

// Vector3 is a position or direction in listener space
type Vector3 struct {
	X, Y, Z float32
}

// Sub returns v - o
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Cross returns the vector product v x o
func (v Vector3) Cross(o Vector3) Vector3 {
	return Vector3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Dot returns the scalar product
func (v Vector3) Dot(o Vector3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length returns the euclidean norm
func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Listener is the pose every 3D source is panned and attenuated against
type Listener struct {
	Position Vector3
	Up       Vector3
	LookAt   Vector3
}

// DefaultListener sits at the origin looking down -Z with +Y up
func DefaultListener() Listener {
	return Listener{
		Up:     Vector3{0, 1, 0},
		LookAt: Vector3{0, 0, -1},
	}
}

// ClampGain limits a gain to [MinGain, MaxGain]
func ClampGain(g float32) float32 {
	if g < MinGain {
		return MinGain
	}
	if g > MaxGain {
		return MaxGain
	}
	return g
}

// ClampPitch limits a pitch to [MinPitch, MaxPitch]
func ClampPitch(p float32) float32 {
	if p < MinPitch {
		return MinPitch
	}
	if p > MaxPitch {
		return MaxPitch
	}
	return p
}

// SaturateInt16 clamps a mixed sample into the signed 16-bit range
func SaturateInt16(v int32) int16 {
	if uint32(v+32768) > 65535 {
		if v < 0 {
			return math.MinInt16
		}
		return math.MaxInt16
	}
	return int16(v)
}

// FloatToInt16 converts a [-1,1] float sample with clipping
func FloatToInt16(f float32) int16 {
	return SaturateInt16(int32(f * 32768))
}
