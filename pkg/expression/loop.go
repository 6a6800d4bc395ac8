// Package expression drives the avatar's idle sway, blink and talking
// mouth cycle.
//
// The Loop is ticked once per rendered frame. Talk signals may arrive from
// any goroutine; they are queued and applied at the top of the next tick,
// so a tick never sees a half-applied signal. Talk expiry is a deadline
// measured in loop time, not a wall-clock timer.
package expression

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/aquilax/go-perlin"
	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/rig"
)

// ErrSignalQueueFull is returned when talk signals arrive faster than the
// loop drains them.
var ErrSignalQueueFull = errors.New("talk signal queue full")

// Viseme is one of the three mouth shapes cycled while talking.
type Viseme int

const (
	VisemeAa Viseme = iota
	VisemeIh
	VisemeOu
)

var visemeChannels = [3]string{rig.ExpressionAa, rig.ExpressionIh, rig.ExpressionOu}

// Channel returns the expression channel name of the viseme.
func (v Viseme) Channel() string {
	return visemeChannels[v]
}

func (v Viseme) String() string {
	return v.Channel()
}

// Target is what the loop animates. *rig.Skeleton implements it.
type Target interface {
	SetRootYaw(yaw float64)
	SetExpression(name string, weight float64) error
}

// State is a snapshot of the animation state.
type State struct {
	// Clock is the sum of all tick durations.
	Clock time.Duration `json:"clock"`

	// Time is the idle accumulator driving sway and blink.
	Time float64 `json:"time"`

	Talking   bool    `json:"talking"`
	TalkPhase float64 `json:"talkPhase"`
	Session   string  `json:"session,omitempty"`

	// Deadline is the loop Clock at which talking expires.
	Deadline    time.Duration `json:"deadline,omitempty"`
	HasDeadline bool          `json:"hasDeadline"`

	Visemes [3]float64 `json:"visemes"`
	Blink   float64    `json:"blink"`
	RootYaw float64    `json:"rootYaw"`
}

// Viseme returns the active viseme, if any.
func (s State) Viseme() (Viseme, bool) {
	for i, w := range s.Visemes {
		if w > 0 {
			return Viseme(i), true
		}
	}
	return 0, false
}

type signalKind int

const (
	signalStart signalKind = iota
	signalStop
)

type signal struct {
	kind     signalKind
	duration time.Duration
	session  string
}

// Loop is the per-frame expression scheduler.
type Loop struct {
	cfg     Config
	signals chan signal
	noise   *perlin.Perlin

	mu     sync.RWMutex
	target Target
	state  State
	warned map[string]bool
}

// NewLoop creates a detached loop. Ticks are no-ops until Attach.
func NewLoop(cfg Config) *Loop {
	if cfg.SignalBuffer <= 0 {
		cfg.SignalBuffer = DefaultConfig().SignalBuffer
	}
	l := &Loop{
		cfg:     cfg,
		signals: make(chan signal, cfg.SignalBuffer),
		warned:  make(map[string]bool),
	}
	if cfg.SwayNoise > 0 {
		l.noise = perlin.NewPerlin(2, 2, 3, cfg.NoiseSeed)
	}
	l.state.RootYaw = cfg.BaseYaw
	return l
}

// Config returns the loop configuration.
func (l *Loop) Config() Config {
	return l.cfg
}

// Attach binds the loop to a rig.
func (l *Loop) Attach(t Target) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = t
	l.warned = make(map[string]bool)
}

// Detach releases the rig and drops any pending talk state.
func (l *Loop) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = nil
	l.state = State{RootYaw: l.cfg.BaseYaw}
	for {
		select {
		case <-l.signals:
		default:
			return
		}
	}
}

// StartTalking queues the start of a talk session. A positive duration
// ends it automatically; zero talks until StopTalking. The new session
// replaces any pending expiry. It returns the session ID.
func (l *Loop) StartTalking(d time.Duration) (string, error) {
	if d < 0 {
		d = 0
	}
	s := signal{kind: signalStart, duration: d, session: uuid.NewString()}
	if err := l.enqueue(s); err != nil {
		return "", err
	}
	return s.session, nil
}

// StopTalking queues the end of the current talk session.
func (l *Loop) StopTalking() error {
	return l.enqueue(signal{kind: signalStop})
}

func (l *Loop) enqueue(s signal) error {
	select {
	case l.signals <- s:
		return nil
	default:
		log.Warn("talk signal dropped", "queue", cap(l.signals))
		return ErrSignalQueueFull
	}
}

// Tick advances the loop by dt and writes the results to the target.
func (l *Loop) Tick(dt time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.target == nil {
		return
	}

	l.drain()

	st := &l.state
	st.Clock += dt
	st.Time += dt.Seconds() * l.cfg.IdleRate

	if st.Talking && st.HasDeadline && st.Clock >= st.Deadline {
		log.Debug("talk session expired", "session", st.Session)
		l.stop()
	}

	st.RootYaw = l.cfg.BaseYaw + math.Sin(st.Time*l.cfg.SwayFrequency)*l.cfg.SwayAmplitude
	if l.noise != nil {
		st.RootYaw += l.noise.Noise1D(st.Time*l.cfg.SwayFrequency) * l.cfg.SwayNoise
	}
	l.target.SetRootYaw(st.RootYaw)

	st.Blink = 0
	if (math.Sin(st.Time)+1)/2 > l.cfg.BlinkThreshold {
		st.Blink = 1
	}
	l.setExpression(rig.ExpressionBlink, st.Blink)

	if st.Talking {
		st.TalkPhase += dt.Seconds() * l.cfg.TalkRate
		idx := int(math.Floor(math.Mod(st.TalkPhase, 3)))
		for i := range st.Visemes {
			st.Visemes[i] = 0
		}
		st.Visemes[idx] = 1
	}
	for i, w := range st.Visemes {
		l.setExpression(visemeChannels[i], w)
	}
}

func (l *Loop) drain() {
	for {
		select {
		case s := <-l.signals:
			l.apply(s)
		default:
			return
		}
	}
}

func (l *Loop) apply(s signal) {
	st := &l.state
	switch s.kind {
	case signalStart:
		st.Talking = true
		st.TalkPhase = 0
		st.Session = s.session
		st.HasDeadline = s.duration > 0
		st.Deadline = 0
		if st.HasDeadline {
			st.Deadline = st.Clock + s.duration
		}
		log.Debug("talk session started", "session", s.session, "duration", s.duration)
	case signalStop:
		if st.Talking {
			log.Debug("talk session stopped", "session", st.Session)
		}
		l.stop()
	}
}

func (l *Loop) stop() {
	st := &l.state
	st.Talking = false
	st.HasDeadline = false
	st.Deadline = 0
	st.Session = ""
	st.Visemes = [3]float64{}
}

func (l *Loop) setExpression(name string, w float64) {
	if err := l.target.SetExpression(name, w); err != nil {
		if !l.warned[name] {
			l.warned[name] = true
			log.Warn("expression channel skipped", "channel", name, "error", err)
		}
	}
}

// State returns a snapshot of the animation state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}
