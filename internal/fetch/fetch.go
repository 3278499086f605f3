// ABOUTME: HTTP stream factory downloading audio into progressively filled streams
// ABOUTME: Completed downloads are cached on disk under a hash of the URL
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/skylicht-lab/skyaudio/internal/version"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

const chunkSize = 32 * 1024

// Config holds fetcher configuration
type Config struct {
	CacheDir string
	Client   *http.Client
	// NoCache streams every open from the network and keeps nothing on disk
	NoCache bool
}

// Fetcher opens http:// and https:// names as streams. Register it with
// engine.RegisterStreamFactory.
type Fetcher struct {
	cacheDir string
	noCache  bool
	client   *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	requests int
}

// NewFetcher creates the cache directory and returns a fetcher
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), version.Product+"-cache")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if !cfg.NoCache {
		if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Fetcher{
		cacheDir: cfg.CacheDir,
		noCache:  cfg.NoCache,
		client:   cfg.Client,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// IsURL reports whether name is something the fetcher handles
func IsURL(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

// Open implements stream.Factory. Cached URLs come back as file streams;
// anything else starts a background download and returns its OnlineStream
// immediately, so a slow server never blocks the caller.
func (f *Fetcher) Open(name string) (stream.Stream, error) {
	if !IsURL(name) {
		return nil, stream.ErrNotHandled
	}

	cachePath := f.CachePath(name)
	if !f.noCache {
		if _, err := os.Stat(cachePath); err == nil {
			log.Printf("Stream cache hit: %s", cachePath)
			return stream.OpenFile(cachePath)
		}
	}

	online := stream.NewOnlineStream()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer online.SetComplete()
		if err := f.download(name, cachePath, online); err != nil {
			log.Printf("Download of %s failed: %v", name, err)
		}
	}()
	return online, nil
}

// CachePath is where a completed download of url is stored
func (f *Fetcher) CachePath(url string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, fmt.Sprintf("%x%s", hash[:8], getExtension(url)))
}

func (f *Fetcher) download(url, cachePath string, online *stream.OnlineStream) error {
	log.Printf("Downloading stream: %s", url)

	req, err := http.NewRequestWithContext(f.ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.Product+"/"+version.Version)

	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var file *os.File
	if !f.noCache {
		file, err = os.CreateTemp(f.cacheDir, "partial-*")
		if err != nil {
			log.Printf("Stream cache disabled for %s: %v", url, err)
		}
	}

	var sink io.Writer = online
	if file != nil {
		sink = io.MultiWriter(online, file)
	}

	start := time.Now()
	n, copyErr := io.CopyBuffer(sink, resp.Body, make([]byte, chunkSize))

	if file != nil {
		closeErr := file.Close()
		if copyErr != nil || closeErr != nil {
			os.Remove(file.Name())
		} else if err := os.Rename(file.Name(), cachePath); err != nil {
			os.Remove(file.Name())
			log.Printf("Failed to store %s in cache: %v", url, err)
		}
	}
	if copyErr != nil {
		return fmt.Errorf("read failed after %d bytes: %w", n, copyErr)
	}

	log.Printf("Downloaded %s: %d bytes in %v", url, n, time.Since(start).Round(time.Millisecond))
	return nil
}

// Requests is the number of HTTP requests made so far
func (f *Fetcher) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// Wait blocks until every running download has finished
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

// Close aborts running downloads and waits for them
func (f *Fetcher) Close() {
	f.cancel()
	f.wg.Wait()
}

// Cleanup removes the cache directory
func (f *Fetcher) Cleanup() error {
	return os.RemoveAll(f.cacheDir)
}

// getExtension extracts the file extension from a URL so the decoder
// format can still be guessed from the cached path
func getExtension(url string) string {
	url = strings.Split(url, "?")[0]
	url = strings.Split(url, "#")[0]

	ext := filepath.Ext(url)
	if len(ext) < 2 || strings.IndexFunc(ext[1:], notAlnum) >= 0 {
		return ".bin"
	}
	return strings.ToLower(ext)
}

func notAlnum(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
}
