package drowsiness

import "time"

const (
	// DebounceFrames is the number of consecutive closed frames tolerated
	// before the closed-episode clock starts.
	DebounceFrames = 6
	// AlarmDelay is how long an episode must last before the alarm sounds.
	AlarmDelay = 2 * time.Second
)

const (
	StatusSleeping = "SLEEPING ALERT!!!"
	StatusActive   = "ACTIVE :)"
)

// Color is an RGB display colour for the status overlay.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	Black = Color{}
	Red   = Color{R: 255}
	Green = Color{G: 255}
)

type AlarmCommand int

const (
	AlarmNone AlarmCommand = iota
	AlarmOn
	AlarmOff
)

func (c AlarmCommand) String() string {
	switch c {
	case AlarmOn:
		return "on"
	case AlarmOff:
		return "off"
	default:
		return "none"
	}
}

// Decision is the outcome of one Step.
type Decision struct {
	Status string
	Color  Color
	Alarm  AlarmCommand
}

// Counters is a read-only view of the session counters.
type Counters struct {
	Closed int `json:"closed"`
	Drowsy int `json:"drowsy"`
	Active int `json:"active"`
}

// Session is the per-process drowsiness state. It is not safe for concurrent
// use; the owner serialises calls to Step.
type Session struct {
	closed int
	drowsy int
	active int

	closedSince time.Time

	status string
	color  Color
}

func NewSession() *Session {
	return &Session{color: Black}
}

// Step advances the session by one classified face.
//
// Any Closed eye extends the closed streak. Once the streak exceeds
// DebounceFrames the episode clock starts and the alarm is requested after
// AlarmDelay. Every other combination, Drowsy included, counts as active and
// cancels the episode.
func (s *Session) Step(left, right EyeState, now time.Time) Decision {
	if left == Closed || right == Closed {
		s.closed++
		s.drowsy = 0
		s.active = 0

		if s.closed > DebounceFrames {
			cmd := AlarmNone
			if s.closedSince.IsZero() {
				s.closedSince = now
			}
			if now.Sub(s.closedSince) >= AlarmDelay {
				cmd = AlarmOn
			}
			s.status = StatusSleeping
			s.color = Red
			return Decision{Status: s.status, Color: s.color, Alarm: cmd}
		}

		// status lags here until the streak passes the debounce threshold
		return Decision{Status: s.status, Color: s.color, Alarm: AlarmOff}
	}

	s.closedSince = time.Time{}
	s.closed, s.drowsy, s.active = 0, 0, 0
	s.status = StatusActive
	s.color = Green
	return Decision{Status: s.status, Color: s.color, Alarm: AlarmOff}
}

func (s *Session) Status() (string, Color) {
	return s.status, s.color
}

func (s *Session) Counters() Counters {
	return Counters{Closed: s.closed, Drowsy: s.drowsy, Active: s.active}
}

// ClosedSince returns the start of the current closed episode, if any.
func (s *Session) ClosedSince() (time.Time, bool) {
	return s.closedSince, !s.closedSince.IsZero()
}
