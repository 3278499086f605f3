// ABOUTME: Entry point for the skyaudio player
// ABOUTME: Parses CLI flags and plays files or URLs through the audio engine
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/skylicht-lab/skyaudio/internal/app"
	"github.com/skylicht-lab/skyaudio/internal/version"
	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/engine"
)

var (
	driver       = flag.String("driver", "oto", "Output backend: oto, malgo, portaudio, pulse, wavfile, null")
	outputPath   = flag.String("output", "skyaudio-out.wav", "Destination file for the wavfile backend")
	updateMode   = flag.String("update-mode", "driver", "Emitter update scheduling: driver, threaded, manual")
	updateRate   = flag.Int("update-rate", engine.DefaultUpdateRate, "Update frequency in Hz for threaded and manual modes")
	sampleRate   = flag.Int("rate", 44100, "Output sample rate")
	bufferMs     = flag.Int("buffer-ms", 0, "Driver buffer length in milliseconds (0 = default)")
	stallTimeout = flag.Duration("stall-timeout", 10*time.Second, "Give up on a stream that delivers no data for this long (0 = never)")
	loop         = flag.Bool("loop", false, "Loop every track")
	gain         = flag.Float64("gain", 1, "Emitter gain (0-4)")
	pitch        = flag.Float64("pitch", 1, "Playback speed (0.25-4)")
	master       = flag.Float64("master", 1, "Master gain (0-4)")
	pos          = flag.String("pos", "", "Place emitters in 3D at x,y,z")
	orbit        = flag.Bool("orbit", false, "Circle emitters around the listener")
	orbitRadius  = flag.Float64("orbit-radius", 5, "Orbit radius")
	orbitPeriod  = flag.Duration("orbit-period", 8*time.Second, "Time for one orbit")
	cache        = flag.Bool("cache", false, "Decode from a shared in-memory copy of each file")
	cacheDir     = flag.String("cache-dir", "", "Download cache directory for URLs")
	logFile      = flag.String("log-file", "skyaudio.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file-or-url>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	mode, err := engine.ParseUpdateMode(*updateMode)
	if err != nil {
		log.Fatalf("Invalid -update-mode: %v", err)
	}

	var position *audio.Vector3
	if *pos != "" {
		v, err := parseVector(*pos)
		if err != nil {
			log.Fatalf("Invalid -pos: %v", err)
		}
		position = &v
	}

	log.Printf("Starting %s %s with %d track(s) on %s", version.Product, version.Version, flag.NArg(), *driver)

	player := app.New(app.Config{
		Files: flag.Args(),
		Engine: engine.Config{
			Driver:         *driver,
			SampleRate:     *sampleRate,
			BufferDuration: time.Duration(*bufferMs) * time.Millisecond,
			UpdateMode:     mode,
			UpdateRate:     *updateRate,
			StallTimeout:   *stallTimeout,
			MasterGain:     float32(*master),
			Muted:          *master == 0,
			OutputPath:     *outputPath,
		},
		Loop:        *loop,
		Gain:        float32(*gain),
		Pitch:       float32(*pitch),
		Position:    position,
		Cache:       *cache,
		Orbit:       *orbit,
		OrbitRadius: float32(*orbitRadius),
		OrbitPeriod: *orbitPeriod,
		CacheDir:    *cacheDir,
		UseTUI:      useTUI,
	})

	if err := player.Start(); err != nil {
		log.Fatalf("Failed to start player: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-player.Quit():
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	case <-player.Done():
		log.Printf("All tracks finished")
	}

	player.Stop()
}

// parseVector reads "x,y,z"
func parseVector(s string) (audio.Vector3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return audio.Vector3{}, fmt.Errorf("expected x,y,z, got %q", s)
	}

	var vals [3]float32
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return audio.Vector3{}, fmt.Errorf("bad coordinate %q: %w", p, err)
		}
		vals[i] = float32(v)
	}
	return audio.Vector3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
