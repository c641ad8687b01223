package alarm

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeBackend struct {
	plays, stops int
	err          error
}

func (f *fakeBackend) Play() error {
	if f.err != nil {
		return f.err
	}
	f.plays++
	return nil
}

func (f *fakeBackend) Stop() error {
	f.stops++
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPlayerStartIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPlayer(backend, quietLogger())

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if backend.plays != 1 {
		t.Errorf("expected 1 play, got %d", backend.plays)
	}
	if !p.Playing() {
		t.Error("expected playing")
	}
}

func TestPlayerStopIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPlayer(backend, quietLogger())

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if backend.stops != 0 {
		t.Errorf("stop on idle player reached backend %d times", backend.stops)
	}

	p.Start()
	p.Stop()
	p.Stop()
	if backend.stops != 1 {
		t.Errorf("expected 1 stop, got %d", backend.stops)
	}
	if p.Playing() {
		t.Error("expected stopped")
	}
}

func TestPlayerStartError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("no device")}
	p := NewPlayer(backend, quietLogger())

	if err := p.Start(); err == nil {
		t.Fatal("expected error")
	}
	if p.Playing() {
		t.Error("failed start must not mark the alarm as playing")
	}
}
