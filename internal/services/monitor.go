package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"DROWSY_DETECTOR/go-backend/internal/drowsiness"
	"DROWSY_DETECTOR/go-backend/internal/models"
	"DROWSY_DETECTOR/go-backend/internal/stream"
)

// Frame is one captured image. Implementations may hold native memory and
// must be closed by the caller.
type Frame interface {
	GrayJPEG() ([]byte, error)
	Annotate(status string, c drowsiness.Color)
	JPEG() ([]byte, error)
	Close() error
}

// FrameSource is pull based; ok=false means the source is exhausted.
type FrameSource interface {
	Read() (frame Frame, ok bool)
}

type LandmarkModel interface {
	Detect(ctx context.Context, grayJPEG []byte) ([]drowsiness.FaceLandmarks, error)
}

type Alarm interface {
	Start() error
	Stop() error
	Playing() bool
}

// EventSink receives status transitions. Publish must not block.
type EventSink interface {
	Publish(event models.StatusEvent)
}

var ErrSourceExhausted = errors.New("frame source exhausted")

// Monitor runs the frame loop and owns the drowsiness session. Start/stop
// commands and every alarm command are serialised by mu, so once
// StopDetection returns no frame can turn the alarm back on.
type Monitor struct {
	source  FrameSource
	model   LandmarkModel
	alarm   Alarm
	frames  *stream.Broadcaster
	metrics *Metrics
	log     *logrus.Logger
	sinks   []EventSink
	now     func() time.Time

	mu      sync.Mutex
	active  bool
	session *drowsiness.Session
	seq     int64
	last    models.StatusEvent
}

type MonitorOption func(*Monitor)

func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) { m.now = now }
}

func WithSinks(sinks ...EventSink) MonitorOption {
	return func(m *Monitor) { m.sinks = append(m.sinks, sinks...) }
}

func NewMonitor(source FrameSource, model LandmarkModel, alarm Alarm, frames *stream.Broadcaster,
	metrics *Metrics, log *logrus.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source:  source,
		model:   model,
		alarm:   alarm,
		frames:  frames,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		active:  true,
		session: drowsiness.NewSession(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddSink registers another event consumer. It must be called before Run.
func (m *Monitor) AddSink(sink EventSink) {
	m.sinks = append(m.sinks, sink)
}

// Run processes frames until ctx is cancelled or the source fails. Either way
// every open stream is closed on return.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.frames.Close()

	m.log.Info("Frame loop started")
	for {
		if err := ctx.Err(); err != nil {
			m.log.Info("Frame loop stopped")
			return err
		}

		frame, ok := m.source.Read()
		if !ok {
			m.log.Warn("Camera read failed, closing streams")
			return ErrSourceExhausted
		}
		m.ProcessFrame(ctx, frame)
		frame.Close()
	}
}

// ProcessFrame runs one frame through detection, the session and the
// broadcaster. The frame is not closed.
func (m *Monitor) ProcessFrame(ctx context.Context, frame Frame) {
	start := time.Now()
	m.metrics.IncrementFrames()

	if m.DetectionActive() {
		faces := m.detect(ctx, frame)
		status, color, event, changed, active := m.apply(faces)
		if active {
			frame.Annotate(status, color)
		}
		if changed {
			m.emit(event)
		}
	}

	viewers := m.frames.Subscribers()
	m.metrics.SetViewers(viewers)
	if viewers > 0 {
		jpeg, err := frame.JPEG()
		if err != nil {
			m.metrics.IncrementErrors()
			m.log.WithError(err).Error("Frame encoding failed")
		} else {
			m.frames.Publish(jpeg)
		}
	}

	m.metrics.RecordLatency(time.Since(start))
}

func (m *Monitor) detect(ctx context.Context, frame Frame) []drowsiness.FaceLandmarks {
	if m.model == nil {
		return nil
	}

	gray, err := frame.GrayJPEG()
	if err != nil {
		m.metrics.IncrementErrors()
		m.log.WithError(err).Error("Grayscale conversion failed")
		return nil
	}

	faces, err := m.model.Detect(ctx, gray)
	if err != nil {
		m.metrics.IncrementErrors()
		m.log.WithError(err).Warn("Landmark detection failed")
		return nil
	}
	if len(faces) == 0 {
		m.metrics.IncrementFaceless()
	}
	return faces
}

// apply steps the session once per face in scan order, so the last face
// decides the outcome.
func (m *Monitor) apply(faces []drowsiness.FaceLandmarks) (string, drowsiness.Color, models.StatusEvent, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return "", drowsiness.Black, models.StatusEvent{}, false, false
	}

	m.seq++
	var left, right drowsiness.EyeState
	stepped := false
	for i := range faces {
		l, r, err := drowsiness.ClassifyFace(&faces[i])
		if err != nil {
			m.log.WithFields(logrus.Fields{"face": i, "frame": m.seq}).Debug(err.Error())
			continue
		}
		d := m.session.Step(l, r, m.now())
		m.applyAlarm(d.Alarm)
		left, right, stepped = l, r, true
	}

	status, color := m.session.Status()
	event := m.eventLocked()
	if stepped {
		event.LeftEye = left.String()
		event.RightEye = right.String()
	}

	changed := event.Status != m.last.Status || event.AlarmOn != m.last.AlarmOn || event.Detection != m.last.Detection
	if changed {
		m.last = event
	}
	return status, color, event, changed, true
}

// applyAlarm is called with mu held.
func (m *Monitor) applyAlarm(cmd drowsiness.AlarmCommand) {
	switch cmd {
	case drowsiness.AlarmOn:
		wasPlaying := m.alarm.Playing()
		if err := m.alarm.Start(); err != nil {
			m.metrics.IncrementErrors()
			m.log.WithError(err).Error("Alarm start failed")
			return
		}
		if !wasPlaying {
			m.metrics.IncrementAlarms()
		}
	case drowsiness.AlarmOff:
		if err := m.alarm.Stop(); err != nil {
			m.log.WithError(err).Error("Alarm stop failed")
		}
	}
}

// eventLocked is called with mu held.
func (m *Monitor) eventLocked() models.StatusEvent {
	status, color := m.session.Status()
	return models.StatusEvent{
		Status:      status,
		Color:       color,
		AlarmOn:     m.alarm.Playing(),
		Detection:   m.active,
		Counters:    m.session.Counters(),
		FrameNumber: m.seq,
		Timestamp:   m.now().Unix(),
	}
}

func (m *Monitor) emit(event models.StatusEvent) {
	for _, sink := range m.sinks {
		sink.Publish(event)
	}
}

func (m *Monitor) StartDetection() {
	m.mu.Lock()
	m.active = true
	event := m.eventLocked()
	m.last = event
	m.mu.Unlock()

	m.log.Info("Drowsiness detection started")
	m.emit(event)
}

// StopDetection disables detection and silences the alarm. When it returns
// the alarm is off and stays off until detection is started again.
func (m *Monitor) StopDetection() error {
	m.mu.Lock()
	m.active = false
	err := m.alarm.Stop()
	event := m.eventLocked()
	m.last = event
	m.mu.Unlock()

	m.log.Info("Drowsiness detection stopped")
	m.emit(event)
	return err
}

func (m *Monitor) DetectionActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Monitor) Snapshot() models.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, color := m.session.Status()
	snap := models.StatusSnapshot{
		Status:    status,
		Color:     color,
		AlarmOn:   m.alarm.Playing(),
		Detection: m.active,
		Counters:  m.session.Counters(),
		Viewers:   m.frames.Subscribers(),
	}
	if since, ok := m.session.ClosedSince(); ok {
		snap.ClosedSince = &since
	}
	return snap
}

// Shutdown silences the alarm on process exit.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.alarm.Stop(); err != nil {
		m.log.WithError(err).Error("Alarm stop failed")
	}
}
