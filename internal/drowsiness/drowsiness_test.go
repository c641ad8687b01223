package drowsiness

import (
	"errors"
	"math"
	"testing"
	"time"
)

func eye(scale float64) EyeLandmarks {
	return EyeLandmarks{
		{X: 0, Y: 0},
		{X: 1 * scale, Y: 1 * scale},
		{X: 2 * scale, Y: 1 * scale},
		{X: 3 * scale, Y: 0},
		{X: 2 * scale, Y: -0.5 * scale},
		{X: 1 * scale, Y: -0.5 * scale},
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Point{0, 0}, Point{3, 4}); d != 5 {
		t.Errorf("expected 5, got %v", d)
	}
	if d := Distance(Point{1, 1}, Point{1, 1}); d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestEyeAspectRatio(t *testing.T) {
	ratio, err := EyeAspectRatio(eye(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// vertical pairs are 1.5 each, width 3
	if math.Abs(ratio-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %v", ratio)
	}
	if ratio < 0 {
		t.Errorf("ratio must be non-negative, got %v", ratio)
	}
}

func TestEyeAspectRatioScaleInvariant(t *testing.T) {
	base, _ := EyeAspectRatio(eye(1))
	for _, k := range []float64{0.1, 2, 37.5} {
		scaled, err := EyeAspectRatio(eye(k))
		if err != nil {
			t.Fatalf("scale %v: %v", k, err)
		}
		if math.Abs(scaled-base) > 1e-9 {
			t.Errorf("scale %v: expected %v, got %v", k, base, scaled)
		}
	}
}

func TestEyeAspectRatioDegenerate(t *testing.T) {
	var flat EyeLandmarks
	if _, err := EyeAspectRatio(flat); !errors.Is(err, ErrDegenerateEye) {
		t.Errorf("expected ErrDegenerateEye, got %v", err)
	}
}

func TestFaceEyeIndices(t *testing.T) {
	var face FaceLandmarks
	for i := range face {
		face[i] = Point{X: float64(i)}
	}
	left := face.LeftEye()
	want := []float64{36, 37, 38, 39, 40, 41}
	for i, p := range left {
		if p.X != want[i] {
			t.Errorf("left[%d]: expected %v, got %v", i, want[i], p.X)
		}
	}
	right := face.RightEye()
	want = []float64{42, 43, 44, 45, 46, 47}
	for i, p := range right {
		if p.X != want[i] {
			t.Errorf("right[%d]: expected %v, got %v", i, want[i], p.X)
		}
	}
}

func TestClassifyEye(t *testing.T) {
	tests := []struct {
		ratio float64
		want  EyeState
	}{
		{0.30, Open},
		{0.23, Drowsy},
		{0.10, Closed},
		{0.25, Drowsy},
		{0.21, Closed},
		{0, Closed},
	}
	for _, tt := range tests {
		if got := ClassifyEye(tt.ratio); got != tt.want {
			t.Errorf("ClassifyEye(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func stepN(s *Session, n int, state EyeState, start time.Time, every time.Duration) (Decision, int) {
	var d Decision
	ons := 0
	for i := 0; i < n; i++ {
		d = s.Step(state, state, start.Add(time.Duration(i)*every))
		if d.Alarm == AlarmOn {
			ons++
		}
	}
	return d, ons
}

func TestSessionClosedUnderDelay(t *testing.T) {
	s := NewSession()
	start := time.Unix(1000, 0)

	d, ons := stepN(s, 7, Closed, start, 100*time.Millisecond)
	if ons != 0 {
		t.Errorf("alarm requested %d times before delay elapsed", ons)
	}
	if d.Status != StatusSleeping || d.Color != Red {
		t.Errorf("expected sleeping/red, got %q %+v", d.Status, d.Color)
	}
}

func TestSessionClosedPastDelay(t *testing.T) {
	s := NewSession()
	start := time.Unix(1000, 0)

	stepN(s, 6, Closed, start, 0)
	d := s.Step(Closed, Closed, start)
	if d.Alarm != AlarmNone {
		t.Fatalf("episode start should not sound the alarm, got %v", d.Alarm)
	}
	since, ok := s.ClosedSince()
	if !ok || !since.Equal(start) {
		t.Fatalf("episode should start at %v, got %v (%v)", start, since, ok)
	}

	d = s.Step(Closed, Open, start.Add(AlarmDelay))
	if d.Alarm != AlarmOn {
		t.Errorf("expected AlarmOn at %v, got %v", AlarmDelay, d.Alarm)
	}
	d = s.Step(Open, Closed, start.Add(3*time.Second))
	if d.Alarm != AlarmOn {
		t.Errorf("expected AlarmOn to persist, got %v", d.Alarm)
	}
}

func TestSessionOpenResets(t *testing.T) {
	s := NewSession()
	start := time.Unix(1000, 0)
	stepN(s, 30, Closed, start, 100*time.Millisecond)

	d := s.Step(Open, Open, start.Add(5*time.Second))
	if d.Alarm != AlarmOff {
		t.Errorf("expected AlarmOff, got %v", d.Alarm)
	}
	if d.Status != StatusActive || d.Color != Green {
		t.Errorf("expected active/green, got %q %+v", d.Status, d.Color)
	}
	if c := s.Counters(); c != (Counters{}) {
		t.Errorf("expected zero counters, got %+v", c)
	}
	if _, ok := s.ClosedSince(); ok {
		t.Error("episode clock should be cleared")
	}
}

func TestSessionDebounceOnly(t *testing.T) {
	s := NewSession()
	start := time.Unix(1000, 0)
	for i := 0; i < 6; i++ {
		d := s.Step(Closed, Closed, start.Add(time.Duration(i)*time.Second))
		if d.Alarm != AlarmOff {
			t.Errorf("frame %d: expected AlarmOff, got %v", i, d.Alarm)
		}
		if _, ok := s.ClosedSince(); ok {
			t.Fatalf("frame %d: episode clock set during debounce", i)
		}
	}
	if c := s.Counters(); c.Closed != 6 {
		t.Errorf("expected 6 closed frames, got %d", c.Closed)
	}
}

func TestSessionStatusLagsDuringDebounce(t *testing.T) {
	s := NewSession()
	now := time.Unix(1000, 0)
	s.Step(Open, Open, now)

	d := s.Step(Closed, Closed, now)
	if d.Status != StatusActive {
		t.Errorf("status should keep last value during debounce, got %q", d.Status)
	}
}

func TestSessionDrowsyCountsAsActive(t *testing.T) {
	s := NewSession()
	now := time.Unix(1000, 0)
	stepN(s, 10, Closed, now, 0)

	d := s.Step(Drowsy, Drowsy, now)
	if d.Status != StatusActive || d.Alarm != AlarmOff {
		t.Errorf("drowsy eyes should reset to active, got %q %v", d.Status, d.Alarm)
	}
}
