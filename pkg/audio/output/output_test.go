// ABOUTME: Tests for the mixer, backend registry and software backends
// ABOUTME: Covers alignment, saturation, duration feedback, null and wavfile drivers
package output

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

func TestBackendsImplementDriver(t *testing.T) {
	var _ Driver = (*Null)(nil)
	var _ Driver = (*WavFile)(nil)
	var _ Driver = (*Oto)(nil)
	var _ Driver = (*Malgo)(nil)
	var _ Driver = (*PortAudio)(nil)
	var _ Driver = (*Pulse)(nil)
}

func TestAlignBuffer(t *testing.T) {
	tests := []struct {
		bytes, granularity, want int
	}{
		{11025, 4, 11028},
		{11025, 2048, 12288},
		{11025, 4096, 12288},
		{8192, 2048, 8192},
		{0, 4, 4},
		{100, 0, 100},
		{1, 2048, 2048},
	}
	for _, tt := range tests {
		if got := alignBuffer(tt.bytes, tt.granularity); got != tt.want {
			t.Errorf("alignBuffer(%d, %d) = %d, want %d", tt.bytes, tt.granularity, got, tt.want)
		}
	}
}

func TestComputeParamFeedsBackDuration(t *testing.T) {
	p := computeParam(44100, 2, 2048, DefaultBufferDuration)

	if p.BufferBytes != 12288 || p.BufferFrames != 3072 {
		t.Fatalf("unexpected geometry: %+v", p)
	}
	want := time.Duration(3072) * time.Second / 44100
	if p.BufferDuration != want {
		t.Errorf("expected duration %v, got %v", want, p.BufferDuration)
	}
	if p.BitsPerSample != 16 || p.NumBuffers != 2 {
		t.Errorf("unexpected format fields: %+v", p)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.SampleRate != 44100 || c.NumBuffers != 2 || c.BufferDuration != 62500*time.Microsecond {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.MasterGain != 1 {
		t.Errorf("expected unity master gain, got %f", c.MasterGain)
	}

	c = Config{MasterGain: 10}.withDefaults()
	if c.MasterGain != audio.MaxGain {
		t.Errorf("expected master gain clamped to %f, got %f", audio.MaxGain, c.MasterGain)
	}

	c = Config{MasterGain: 0.5, Muted: true}.withDefaults()
	if c.MasterGain != 0 {
		t.Errorf("expected muted master gain 0, got %f", c.MasterGain)
	}
}

func TestRegistry(t *testing.T) {
	d, err := New("", Config{})
	if err != nil {
		t.Fatalf("default backend failed: %v", err)
	}
	if d.Name() != "null" {
		t.Errorf("expected null default, got %s", d.Name())
	}

	if _, err := New("nope", Config{}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}

	names := Backends()
	for _, want := range []string{"malgo", "null", "oto", "portaudio", "pulse", "wavfile"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("backend %s not registered", want)
		}
	}
}

func TestMixerSaturates(t *testing.T) {
	m := NewMixer(Config{SampleRate: 48000, BufferDuration: 10 * time.Millisecond}, FrameSize)
	p := m.SourceParam()
	n := p.BufferFrames * Channels

	for _, v := range []int16{30000, 30000} {
		s := m.CreateSource()
		if err := s.Init(audio.TrackParams{Channels: 2, SampleRate: 48000, BitsPerSample: 16}); err != nil {
			t.Fatalf("init failed: %v", err)
		}
		s.Play()
		pcm := constant(n, v)
		pcm[1] = -30000
		s.Upload(pcm)
	}

	out := make([]int16, n)
	m.FillBuffer(out, p.BufferFrames)

	if out[0] != math.MaxInt16 {
		t.Errorf("expected positive clip, got %d", out[0])
	}
	if out[1] != math.MinInt16 {
		t.Errorf("expected negative clip, got %d", out[1])
	}
}

func TestMixerWritesSilenceWithoutSources(t *testing.T) {
	m := NewMixer(Config{}, FrameSize)
	out := constant(64, 99)
	m.FillBuffer(out, 32)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d not silenced: %d", i, v)
		}
	}
}

func TestMixerMasterGain(t *testing.T) {
	m := NewMixer(Config{SampleRate: 48000, BufferDuration: 10 * time.Millisecond}, FrameSize)
	m.SetMasterGain(0.5)
	p := m.SourceParam()
	n := p.BufferFrames * Channels

	s := m.CreateSource()
	s.Init(audio.TrackParams{Channels: 2, SampleRate: 48000, BitsPerSample: 16})
	s.Play()
	s.Upload(constant(n, 1000))

	out := make([]int16, n)
	m.FillBuffer(out, p.BufferFrames)
	if out[0] != 500 {
		t.Errorf("expected 500, got %d", out[0])
	}

	m.DestroySource(s)
	if m.SourceCount() != 0 {
		t.Error("expected source to be removed")
	}
}

func TestChangeDurationUpdatesSources(t *testing.T) {
	m := NewMixer(Config{SampleRate: 48000, BufferDuration: 10 * time.Millisecond}, 2048)
	s := m.CreateSource()
	s.Init(audio.TrackParams{Channels: 2, SampleRate: 48000, BitsPerSample: 16})
	s.Play()
	s.Upload(constant(1024, 1))

	m.ChangeDuration(50 * time.Millisecond)

	p := m.SourceParam()
	if p.BufferBytes%2048 != 0 || p.BufferBytes < 9600 {
		t.Errorf("unexpected buffer bytes %d", p.BufferBytes)
	}
	if s.Param() != p {
		t.Errorf("source did not receive new geometry: %+v", s.Param())
	}
	if s.Queued() != 0 {
		t.Error("expected queued audio to be dropped")
	}
	if s.SlotBytes() != p.BufferFrames*4 {
		t.Errorf("expected slot of %d bytes, got %d", p.BufferFrames*4, s.SlotBytes())
	}
}

func TestNullUpdateRunsHook(t *testing.T) {
	n := NewNull(Config{SampleRate: 48000, BufferDuration: 10 * time.Millisecond})

	calls := 0
	n.SetUpdateHook(func() { calls++ })

	n.Update()
	if calls != 0 {
		t.Fatal("update before Init should do nothing")
	}

	if err := n.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	n.Update()
	n.Update()
	if calls != 2 || n.Refills() != 2 {
		t.Errorf("expected 2 refills, got hook=%d refills=%d", calls, n.Refills())
	}
	if len(n.Last()) != n.SourceParam().BufferFrames*Channels {
		t.Errorf("unexpected last buffer length %d", len(n.Last()))
	}

	n.Suspend()
	n.Update()
	if calls != 2 {
		t.Error("suspended backend should not refill")
	}
	n.Resume()
	n.Update()
	if calls != 3 {
		t.Error("expected refill after resume")
	}
	n.Shutdown()
}

func TestPumpServesWholeBuffers(t *testing.T) {
	m := NewMixer(Config{SampleRate: 48000, BufferDuration: 10 * time.Millisecond}, FrameSize)
	refills := 0
	m.SetUpdateHook(func() { refills++ })

	p := newPump(m)
	frames := m.SourceParam().BufferFrames

	// Odd request sizes must not trigger extra refills
	p.read(make([]int16, 100))
	p.read(make([]int16, frames*Channels-100))
	if refills != 1 {
		t.Errorf("expected 1 refill, got %d", refills)
	}
	p.read(make([]int16, 2))
	if refills != 2 {
		t.Errorf("expected 2 refills, got %d", refills)
	}
}

func TestWavFileRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.wav")
	w := NewWavFile(Config{SampleRate: 22050, BufferDuration: 20 * time.Millisecond, OutputPath: path})

	if err := w.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.Written() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Shutdown()

	if w.Written() == 0 {
		t.Fatal("no audio was written")
	}
	if err := w.Err(); err != nil {
		t.Fatalf("write error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("output is not a valid WAV file")
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("unexpected format: %dHz %dch %d-bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}
