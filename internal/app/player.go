// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates the audio engine, URL fetching, orbit motion and the console
package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skylicht-lab/skyaudio/internal/fetch"
	"github.com/skylicht-lab/skyaudio/internal/ui"
	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/engine"
)

const statusInterval = 250 * time.Millisecond

// Config holds player configuration
type Config struct {
	Files  []string
	Engine engine.Config

	Loop     bool
	Gain     float32
	Pitch    float32
	Position *audio.Vector3
	Cache    bool

	// Orbit moves every emitter around the listener in the XZ plane
	Orbit       bool
	OrbitRadius float32
	OrbitPeriod time.Duration

	CacheDir string
	UseTUI   bool
}

func (c Config) withDefaults() Config {
	if c.Gain <= 0 {
		c.Gain = 1
	}
	if c.Pitch <= 0 {
		c.Pitch = 1
	}
	if c.OrbitRadius <= 0 {
		c.OrbitRadius = 5
	}
	if c.OrbitPeriod <= 0 {
		c.OrbitPeriod = 8 * time.Second
	}
	return c
}

// Player plays a list of files or URLs through one engine
type Player struct {
	config   Config
	engine   *engine.Engine
	fetcher  *fetch.Fetcher
	emitters []*engine.Emitter

	tuiProg  *tea.Program
	controls *ui.Controls

	mu        sync.Mutex
	finished  map[int]bool
	lastEvent string
	done      chan struct{}
	doneOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new player
func New(config Config) *Player {
	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		config:   config.withDefaults(),
		finished: make(map[int]bool),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start opens the engine and starts every file playing
func (p *Player) Start() error {
	if len(p.config.Files) == 0 {
		return fmt.Errorf("nothing to play")
	}

	fetcher, err := fetch.NewFetcher(fetch.Config{CacheDir: p.config.CacheDir})
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}
	p.fetcher = fetcher

	cfg := p.config.Engine
	userEvents := cfg.OnEvent
	cfg.OnEvent = func(ev engine.Event) {
		p.handleEvent(ev)
		if userEvents != nil {
			userEvents(ev)
		}
	}
	p.engine = engine.New(cfg)
	p.engine.RegisterStreamFactory(fetcher)

	if err := p.engine.Init(); err != nil {
		return fmt.Errorf("failed to start audio engine: %w", err)
	}

	for _, name := range p.config.Files {
		em := p.engine.CreateEmitterFromFile(name, p.config.Cache)
		em.SetLoop(p.config.Loop)
		em.SetGain(p.config.Gain)
		em.SetPitch(p.config.Pitch)
		if p.config.Position != nil {
			em.SetPosition(*p.config.Position)
		}
		p.emitters = append(p.emitters, em)
		log.Printf("Queued %s (emitter %s)", name, em.ID())
	}

	if p.config.UseTUI {
		p.controls = ui.NewControls()
		prog, err := ui.Run(p.controls)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		p.tuiProg = prog

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if _, err := prog.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		p.goLoop(p.controlLoop)
	}

	p.goLoop(p.updateLoop)
	if p.config.Orbit {
		p.goLoop(p.orbitLoop)
	}
	p.goLoop(p.statusLoop)

	for _, em := range p.emitters {
		em.Play()
	}
	return nil
}

func (p *Player) goLoop(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}

// Engine returns the running engine, nil before Start
func (p *Player) Engine() *engine.Engine {
	return p.engine
}

// Done is closed once every emitter has finished or failed. Looping
// emitters never finish.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// Quit is signalled when the user quits from the console
func (p *Player) Quit() <-chan struct{} {
	if p.controls == nil {
		return nil
	}
	return p.controls.Quit
}

// handleEvent logs engine events and tracks completion
func (p *Player) handleEvent(ev engine.Event) {
	idx := p.indexOf(ev)
	name := ev.EmitterID.String()
	if idx >= 0 {
		name = filepath.Base(p.config.Files[idx])
	}

	msg := fmt.Sprintf("%s: %s", name, ev.Type)
	if ev.Err != nil {
		msg += fmt.Sprintf(" (%v)", ev.Err)
	}
	log.Printf("Emitter event: %s", msg)

	p.mu.Lock()
	p.lastEvent = msg
	switch ev.Type {
	case engine.EventEndTrack, engine.EventDecodeFailed, engine.EventStalled:
		if idx >= 0 {
			p.finished[idx] = true
		}
	case engine.EventPlaying:
		if idx >= 0 {
			delete(p.finished, idx)
		}
	}
	all := len(p.emitters) > 0 && len(p.finished) == len(p.emitters)
	p.mu.Unlock()

	if all {
		p.doneOnce.Do(func() { close(p.done) })
	}
}

func (p *Player) indexOf(ev engine.Event) int {
	for i, em := range p.emitters {
		if em.ID() == ev.EmitterID {
			return i
		}
	}
	return -1
}

// updateLoop pumps the engine at its update rate. Backends with their own
// thread ignore the driver half of Update.
func (p *Player) updateLoop() {
	rate := p.config.Engine.UpdateRate
	if rate <= 0 {
		rate = engine.DefaultUpdateRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.engine.Update()
		case <-p.ctx.Done():
			return
		}
	}
}

// orbitLoop circles the emitters around the listener, evenly spaced
func (p *Player) orbitLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			for i, em := range p.emitters {
				offset := float64(i) / float64(len(p.emitters))
				em.SetPosition(orbitPosition(elapsed, p.config.OrbitPeriod, p.config.OrbitRadius, offset))
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// orbitPosition places a point on a circle of radius r in the XZ plane.
// offset is a fraction of a full turn.
func orbitPosition(elapsed, period time.Duration, r float32, offset float64) audio.Vector3 {
	turn := float64(elapsed%period)/float64(period) + offset
	angle := 2 * math.Pi * turn
	return audio.Vector3{
		X: r * float32(math.Cos(angle)),
		Z: r * float32(math.Sin(angle)),
	}
}

// controlLoop applies console commands
func (p *Player) controlLoop() {
	for {
		select {
		case cmd := <-p.controls.Commands:
			p.apply(cmd)
		case <-p.ctx.Done():
			return
		}
	}
}

// apply runs one console command
func (p *Player) apply(cmd ui.Command) {
	if cmd.Kind == ui.CmdMasterGain {
		p.engine.SetMasterGain(p.masterGain() + cmd.Delta)
		return
	}

	if cmd.Emitter < 0 || cmd.Emitter >= len(p.emitters) {
		return
	}
	em := p.emitters[cmd.Emitter]

	switch cmd.Kind {
	case ui.CmdTogglePlay:
		if em.IsPlaying() {
			em.Pause()
		} else {
			em.Play()
		}
	case ui.CmdStop:
		em.Stop()
	case ui.CmdRestart:
		em.PlayFromStart()
	case ui.CmdToggleLoop:
		em.SetLoop(!em.Loop())
	case ui.CmdGain:
		em.SetGain(em.Gain() + cmd.Delta)
	case ui.CmdPitch:
		em.SetPitch(em.Pitch() + cmd.Delta)
	case ui.CmdSeek:
		target := em.CurrentTime() + cmd.Seek
		if target < 0 {
			target = 0
		}
		if d := em.Duration(); d > 0 && target >= d {
			target = d - time.Millisecond
		}
		if err := em.Seek(target); err != nil {
			log.Printf("Seek failed: %v", err)
		}
	}
}

func (p *Player) masterGain() float32 {
	if p.engine == nil {
		return 1
	}
	return p.engine.MasterGain()
}

// Status snapshots the engine for the console
func (p *Player) Status() ui.StatusMsg {
	status := ui.StatusMsg{MasterGain: p.masterGain()}

	p.mu.Lock()
	status.LastEvent = p.lastEvent
	p.mu.Unlock()

	if drv := p.engine.Driver(); drv != nil {
		sp := drv.SourceParam()
		status.Backend = drv.Name()
		status.SampleRate = sp.SampleRate
		status.BufferDuration = sp.BufferDuration
	}

	for i, em := range p.emitters {
		pos := em.Position()
		info := ui.EmitterInfo{
			Name:     filepath.Base(p.config.Files[i]),
			State:    em.State().String(),
			Position: em.CurrentTime(),
			Duration: em.Duration(),
			Gain:     em.Gain(),
			Pitch:    em.Pitch(),
			Loop:     em.Loop(),
			Is3D:     p.config.Position != nil || p.config.Orbit,
			X:        pos.X,
			Z:        pos.Z,
		}
		status.Emitters = append(status.Emitters, info)
	}
	return status
}

// statusLoop feeds the console
func (p *Player) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.tuiProg != nil {
				p.tuiProg.Send(p.Status())
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Stop stops the player
func (p *Player) Stop() {
	p.cancel()

	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
	p.wg.Wait()

	if p.engine != nil {
		p.engine.Shutdown()
	}
	if p.fetcher != nil {
		p.fetcher.Close()
	}
	log.Printf("Player stopped")
}
