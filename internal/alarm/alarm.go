package alarm

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Backend performs the actual playback.
type Backend interface {
	Play() error
	Stop() error
}

// Player tracks whether the alarm is sounding and forwards only real
// transitions to the backend, so Start and Stop are idempotent.
type Player struct {
	mu      sync.Mutex
	backend Backend
	playing bool
	log     *logrus.Logger
}

func NewPlayer(backend Backend, log *logrus.Logger) *Player {
	return &Player{backend: backend, log: log}
}

func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return nil
	}
	if err := p.backend.Play(); err != nil {
		return fmt.Errorf("could not start alarm: %w", err)
	}
	p.playing = true
	p.log.Warn("alarm started")
	return nil
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return nil
	}
	if err := p.backend.Stop(); err != nil {
		return fmt.Errorf("could not stop alarm: %w", err)
	}
	p.playing = false
	p.log.Info("alarm stopped")
	return nil
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// LogBackend only logs. Used when no audio device is available.
type LogBackend struct {
	Log *logrus.Logger
}

func (b LogBackend) Play() error {
	b.Log.Warn("ALARM (no audio device)")
	return nil
}

func (b LogBackend) Stop() error {
	return nil
}
