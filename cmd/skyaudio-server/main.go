// ABOUTME: Entry point for the skyaudio push server
// ABOUTME: Plays audio pushed over websockets through the local audio engine
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skylicht-lab/skyaudio/internal/netstream"
	"github.com/skylicht-lab/skyaudio/internal/version"
	"github.com/skylicht-lab/skyaudio/pkg/engine"
)

var (
	port         = flag.Int("port", netstream.DefaultPort, "WebSocket server port")
	path         = flag.String("path", netstream.DefaultPath, "WebSocket path")
	name         = flag.String("name", "", "Server friendly name (default: hostname-skyaudio)")
	driver       = flag.String("driver", "oto", "Output backend: oto, malgo, portaudio, pulse, wavfile, null")
	outputPath   = flag.String("output", "skyaudio-server.wav", "Destination file for the wavfile backend")
	updateMode   = flag.String("update-mode", "threaded", "Emitter update scheduling: driver, threaded, manual")
	stallTimeout = flag.Duration("stall-timeout", 30*time.Second, "Fail a push that delivers no data for this long (0 = never)")
	logFile      = flag.String("log-file", "skyaudio-server.log", "Log file path")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	noMDNS       = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-%s", hostname, version.Product)
	}

	mode, err := engine.ParseUpdateMode(*updateMode)
	if err != nil {
		log.Fatalf("Invalid -update-mode: %v", err)
	}

	log.Printf("Starting %s push server %s: %s on port %d", version.Product, version.Version, serverName, *port)
	log.Printf("Logging to: %s", *logFile)

	var srv *netstream.Server
	eng := engine.New(engine.Config{
		Driver:       *driver,
		UpdateMode:   mode,
		StallTimeout: *stallTimeout,
		OutputPath:   *outputPath,
		OnEvent: func(ev engine.Event) {
			if *debug {
				log.Printf("Emitter %s: %s", ev.EmitterID, ev.Type)
			}
			srv.HandleEvent(ev)
		},
	})
	srv = netstream.New(netstream.Config{
		Port:       *port,
		Path:       *path,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
	}, eng)

	if err := eng.Init(); err != nil {
		log.Fatalf("Failed to start audio engine: %v", err)
	}
	defer eng.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("Shutting down...")
		srv.Stop()
		return nil
	})
	g.Go(func() error {
		// Backends without their own thread, and manual mode, need pumping
		ticker := time.NewTicker(time.Second / engine.DefaultUpdateRate)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				eng.Update()
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
		eng.Shutdown()
		os.Exit(1)
	}
	log.Printf("Server stopped")
}
