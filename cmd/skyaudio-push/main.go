// ABOUTME: Entry point for the skyaudio push client
// ABOUTME: Finds a server via mDNS or flag and streams a local file to it
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skylicht-lab/skyaudio/internal/discovery"
	"github.com/skylicht-lab/skyaudio/internal/netstream"
	"github.com/skylicht-lab/skyaudio/internal/protocol"
)

var (
	serverAddr = flag.String("server", "", "Server address host:port (skip mDNS)")
	path       = flag.String("path", netstream.DefaultPath, "WebSocket path when -server is given")
	rate       = flag.Int("rate", 0, "Decode and resample to this rate before pushing (0 = send the file as is)")
	encoding   = flag.String("encode", "pcm", "Encoding when transcoding: pcm or ima")
	gain       = flag.Float64("gain", 1, "Emitter gain on the server")
	pitch      = flag.Float64("pitch", 1, "Playback speed on the server")
	loop       = flag.Bool("loop", false, "Loop on the server until interrupted")
	chunkMs    = flag.Int("chunk-interval-ms", 0, "Delay between uploaded chunks")
	timeout    = flag.Duration("discover-timeout", 10*time.Second, "How long to browse for a server")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	file := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, wsPath := *serverAddr, *path
	if addr == "" {
		found, err := discover(ctx)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr, wsPath = found.Addr(), found.Path
		log.Printf("Discovered server %s at %s", found.Name, addr)
	}

	client := netstream.NewClient(netstream.ClientConfig{
		ServerAddr:    addr,
		Path:          wsPath,
		ChunkInterval: time.Duration(*chunkMs) * time.Millisecond,
	})
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer client.Close()

	hello := client.ServerHello()
	log.Printf("Connected to %s (%s output at %d Hz)", hello.Name, hello.Backend, hello.SampleRate)

	data, format, err := load(file, *rate, *encoding)
	if err != nil {
		log.Fatalf("Failed to prepare %s: %v", file, err)
	}

	start := protocol.PushStart{
		Name:   filepath.Base(file),
		Format: format,
		Gain:   float32(*gain),
		Pitch:  float32(*pitch),
		Loop:   *loop,
	}

	go func() {
		<-ctx.Done()
		if err := client.StopPush(); err != nil {
			log.Printf("Failed to stop push: %v", err)
		}
	}()

	state, err := client.Push(ctx, bytes.NewReader(data), start)
	if err != nil {
		log.Fatalf("Push failed: %v", err)
	}
	log.Printf("Push finished: %s", state.State)
}

func discover(ctx context.Context) (*discovery.ServerInfo, error) {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	return mgr.WaitServer(ctx)
}
