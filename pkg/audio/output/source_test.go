// ABOUTME: Tests for sound source mixing
// ABOUTME: Covers gain, up-mixing, rate conversion, 3D gains and ring order
package output

import (
	"math"
	"testing"
	"time"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

func testParam(rate int) SourceParam {
	return computeParam(rate, 2, FrameSize, 10*time.Millisecond)
}

func newTestSource(t *testing.T, param SourceParam, channels, rate int) *SoundSource {
	t.Helper()
	s := newSoundSource(param)
	err := s.Init(audio.TrackParams{Channels: channels, SampleRate: rate, BitsPerSample: 16})
	if err != nil {
		t.Fatalf("failed to init source: %v", err)
	}
	s.Play()
	return s
}

func constant(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSourceInitRejectsBitDepth(t *testing.T) {
	s := newSoundSource(testParam(48000))
	err := s.Init(audio.TrackParams{Channels: 2, SampleRate: 48000, BitsPerSample: 8})
	if err == nil {
		t.Fatal("expected 8-bit track to be rejected")
	}
	if s.State() != StateInitial {
		t.Errorf("expected initial state, got %v", s.State())
	}
	if s.NeedData() {
		t.Error("uninitialised source must not request data")
	}
}

func TestSlotFrames(t *testing.T) {
	param := testParam(48000)
	if param.BufferFrames != 480 {
		t.Fatalf("expected 480 frames, got %d", param.BufferFrames)
	}

	tests := []struct {
		channels, rate int
		want           int
	}{
		{2, 48000, 480 * 4},
		{1, 44100, 441 * 2},
		{2, 22050, 221 * 4},
	}
	for _, tt := range tests {
		s := newTestSource(t, param, tt.channels, tt.rate)
		if got := s.SlotBytes(); got != tt.want {
			t.Errorf("%dch %dHz: expected %d slot bytes, got %d", tt.channels, tt.rate, tt.want, got)
		}
	}
}

func TestUnityGainReproducesInput(t *testing.T) {
	param := testParam(48000)
	s := newTestSource(t, param, 2, 48000)

	in := make([]int16, param.BufferFrames*2)
	for i := range in {
		in[i] = int16(i*13 - 5000)
	}
	s.Upload(in)

	acc := make([]int32, len(in))
	s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())

	for i := range in {
		if acc[i] != int32(in[i]) {
			t.Fatalf("sample %d: expected %d, got %d", i, in[i], acc[i])
		}
	}
}

func TestZeroGainConsumesSlot(t *testing.T) {
	param := testParam(48000)
	s := newTestSource(t, param, 2, 48000)
	s.SetGain(0)
	s.Upload(constant(param.BufferFrames*2, 1000))

	acc := constant32(param.BufferFrames*2, 7)
	s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())

	for i, v := range acc {
		if v != 7 {
			t.Fatalf("sample %d changed to %d", i, v)
		}
	}
	if s.Queued() != 0 {
		t.Error("expected silent slot to be consumed")
	}
}

func constant32(n int, v int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestMonoUpmixWithRateConversion(t *testing.T) {
	param := testParam(48000)
	s := newTestSource(t, param, 1, 44100)

	frames := s.SlotBytes() / 2
	in := make([]int16, frames)
	for i := range in {
		in[i] = int16(i * 10)
	}
	s.Upload(in)

	acc := make([]int32, param.BufferFrames*2)
	s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())

	ratio := 44100.0 / 48000.0
	last := frames - 1
	for i := 0; i < param.BufferFrames; i++ {
		if acc[i*2] != acc[i*2+1] {
			t.Fatalf("frame %d: left %d != right %d", i, acc[i*2], acc[i*2+1])
		}
		pos := float64(i) * ratio
		k := int(pos)
		if k > last {
			break
		}
		want := float64(k * 10)
		if k < last {
			want += 10 * (pos - float64(k))
		}
		if d := math.Abs(float64(acc[i*2]) - want); d > 1 {
			t.Fatalf("frame %d: expected ~%.1f, got %d", i, want, acc[i*2])
		}
	}
}

func TestShortSlotFillsWholeBuffer(t *testing.T) {
	param := computeParam(44100, 2, FrameSize, DefaultBufferDuration)
	for _, rate := range []int{8000, 11025, 22050, 32000, 44100} {
		s := newTestSource(t, param, 1, rate)
		s.Upload(constant(s.SlotBytes()/2, 1000))

		acc := make([]int32, param.BufferFrames*2)
		s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())

		for i, v := range acc {
			if v != 1000 {
				t.Fatalf("%dHz: sample %d is %d, expected 1000", rate, i, v)
			}
		}
	}
}

func TestRingOrder(t *testing.T) {
	param := testParam(48000)
	s := newTestSource(t, param, 2, 48000)
	n := param.BufferFrames * 2

	if !s.Upload(constant(n, 1)) || !s.Upload(constant(n, 2)) {
		t.Fatal("expected both slots to accept data")
	}
	if s.NeedData() {
		t.Fatal("ring should be full")
	}
	if s.Upload(constant(n, 9)) {
		t.Fatal("upload into a full ring should fail")
	}
	if s.writeIdx != 0 || s.Queued() != 2 {
		t.Fatalf("rejected upload moved the ring: write %d, queued %d", s.writeIdx, s.Queued())
	}

	for _, want := range []int32{1, 2, 3} {
		acc := make([]int32, n)
		s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())
		if acc[0] != want || acc[n-1] != want {
			t.Fatalf("expected slot value %d, got %d..%d", want, acc[0], acc[n-1])
		}
		if want == 1 {
			if !s.NeedData() {
				t.Fatal("expected a free slot after mixing")
			}
			s.Upload(constant(n, 3))
		}
	}
}

func TestPausedSourceIsSilentAndCleared(t *testing.T) {
	param := testParam(48000)
	s := newTestSource(t, param, 2, 48000)
	s.Upload(constant(param.BufferFrames*2, 500))
	s.Pause()

	acc := make([]int32, param.BufferFrames*2)
	s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())
	if acc[0] != 0 {
		t.Errorf("paused source was mixed: %d", acc[0])
	}
	if s.Queued() != 0 {
		t.Errorf("expected pause to clear slots, %d queued", s.Queued())
	}
}

func TestDistanceGain(t *testing.T) {
	tests := []struct {
		name    string
		src     audio.Vector3
		rollOff float32
		want    float32
	}{
		{"half way", audio.Vector3{X: 5}, 10, 0.5},
		{"beyond roll-off", audio.Vector3{Z: 20}, 10, 0},
		{"at listener", audio.Vector3{}, 10, 0.99},
		{"zero roll-off floor", audio.Vector3{X: 0.05}, 0, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := distanceGain(tt.src, audio.Vector3{}, tt.rollOff)
			if math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestPanGains(t *testing.T) {
	l := audio.DefaultListener()
	half := float32(math.Sqrt(0.5))

	tests := []struct {
		name        string
		src         audio.Vector3
		left, right float32
	}{
		{"ahead", audio.Vector3{Z: -3}, half, half},
		{"on axis", audio.Vector3{X: 4}, 1, 0},
		{"opposite axis", audio.Vector3{X: -4}, 0, 1},
		{"at listener", audio.Vector3{}, half, half},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, right := panGains(tt.src, l)
			if math.Abs(float64(left-tt.left)) > 1e-4 || math.Abs(float64(right-tt.right)) > 1e-4 {
				t.Errorf("expected (%f, %f), got (%f, %f)", tt.left, tt.right, left, right)
			}
			if p := left*left + right*right; math.Abs(float64(p-1)) > 1e-4 {
				t.Errorf("expected constant power, got %f", p)
			}
		})
	}
}

func Test3DAttenuationScalesMix(t *testing.T) {
	param := testParam(48000)
	s := newTestSource(t, param, 2, 48000)
	s.Set3D(true)
	s.SetRollOff(10)
	s.SetPosition(audio.Vector3{Z: -5})
	s.Upload(constant(param.BufferFrames*2, 10000))

	acc := make([]int32, param.BufferFrames*2)
	s.FillBuffer(acc, param.BufferFrames, 1, audio.DefaultListener())

	// distance 0.5, pan sqrt(0.5) per side
	want := float64(10000) * 0.5 * math.Sqrt(0.5)
	if d := math.Abs(float64(acc[0]) - want); d > 2 {
		t.Errorf("expected ~%.0f, got %d", want, acc[0])
	}
	if acc[0] != acc[1] {
		t.Errorf("centered source should be balanced: %d vs %d", acc[0], acc[1])
	}
}
