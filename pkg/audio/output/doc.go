// ABOUTME: Output package mixing sound sources into device buffers
// ABOUTME: Provides the Driver contract, the shared Mixer and runtime-selected backends
// Package output mixes SoundSources into interleaved stereo 16-bit buffers
// and hands them to a platform backend.
//
// Every backend embeds *Mixer. Device callbacks (oto, malgo, portaudio,
// pulse) refill from their own audio thread; wavfile runs a paced worker; the
// null backend mixes only when Update is called.
//
//	drv, err := output.New("oto", output.Config{SampleRate: 48000})
//	err = drv.Init()
//	src := drv.CreateSource()
//	err = src.Init(track)
//	src.Play()
//	src.Upload(pcm)
package output
