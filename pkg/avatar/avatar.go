// Package avatar owns a loaded rig for its whole lifetime: it calibrates
// the arms once at load, then runs the render loop that re-applies the
// calibrated pose and ticks the expression loop every frame.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/calibration"
	"github.com/teslashibe/go-avatar/pkg/expression"
	"github.com/teslashibe/go-avatar/pkg/pose"
	"github.com/teslashibe/go-avatar/pkg/rig"
)

// TalkSink receives start/stop talking signals.
type TalkSink interface {
	StartTalking(d time.Duration) (string, error)
	StopTalking() error
}

// Controller is the control surface exposed to adapters.
type Controller interface {
	TalkSink
	Status() Status
}

// Options configures an avatar.
type Options struct {
	Search     calibration.SearchSpace
	Expression expression.Config

	// FPS is the render loop rate used by Run.
	FPS float64

	// Renderer is optional; without it frames are computed but not drawn.
	Renderer Renderer
}

// DefaultOptions returns 60 FPS with the default search space and
// expression tuning.
func DefaultOptions() Options {
	return Options{
		Search:     calibration.DefaultSearchSpace(),
		Expression: expression.DefaultConfig(),
		FPS:        60,
	}
}

// Status is a point-in-time view of an avatar.
type Status struct {
	ID          string              `json:"id"`
	Rig         string              `json:"rig"`
	Running     bool                `json:"running"`
	Disposed    bool                `json:"disposed"`
	Frames      uint64              `json:"frames"`
	Calibration pose.CalibratedPose `json:"calibration"`
	Animation   expression.State    `json:"animation"`
	Expressions map[string]float64  `json:"expressions,omitempty"`
}

// Avatar is a loaded, calibrated rig with its animation state.
type Avatar struct {
	id       string
	fps      float64
	interval time.Duration
	search   *calibration.Searcher
	loop     *expression.Loop

	mu         sync.Mutex
	skel       *rig.Skeleton
	calibrated pose.CalibratedPose
	app        *pose.Applicator
	renderer   Renderer
	seq        uint64
	renderErrs int
	stopCh     chan struct{}
	done       chan struct{}

	// stopPending makes the next Run return at once. Set by a Stop that
	// found no loop running.
	stopPending bool

	running  atomic.Bool
	disposed atomic.Bool
	status   atomic.Pointer[Status]
}

// Load builds an avatar from a rig definition. The definition is cloned,
// so one template can back several avatars. Calibration runs before Load
// returns.
func Load(def *rig.Definition, opts Options) (*Avatar, error) {
	if opts.FPS <= 0 {
		opts.FPS = DefaultOptions().FPS
	}

	search, err := calibration.New(opts.Search)
	if err != nil {
		return nil, err
	}

	interval := time.Duration(float64(time.Second) / opts.FPS)
	if interval < time.Nanosecond {
		interval = time.Nanosecond
	}

	a := &Avatar{
		id:       uuid.NewString(),
		fps:      opts.FPS,
		interval: interval,
		search:   search,
		loop:     expression.NewLoop(opts.Expression),
		renderer: opts.Renderer,
	}

	skel, calibrated, app, err := a.build(def)
	if err != nil {
		return nil, err
	}
	if err := a.install(skel, calibrated, app); err != nil {
		return nil, err
	}

	log.Info("avatar loaded",
		"id", a.id,
		"rig", skel.Name(),
		"bones", skel.Len(),
		"left_calibrated", calibrated.Left.Calibrated,
		"right_calibrated", calibrated.Right.Calibrated,
	)
	return a, nil
}

// build loads and calibrates a skeleton without touching the avatar.
func (a *Avatar) build(def *rig.Definition) (*rig.Skeleton, pose.CalibratedPose, *pose.Applicator, error) {
	if def == nil {
		return nil, pose.CalibratedPose{}, nil, fmt.Errorf("%w: nil definition", rig.ErrRigLoad)
	}

	clone, err := def.Clone()
	if err != nil {
		return nil, pose.CalibratedPose{}, nil, fmt.Errorf("%w: %v", rig.ErrRigLoad, err)
	}

	skel, err := rig.NewSkeleton(clone)
	if err != nil {
		return nil, pose.CalibratedPose{}, nil, err
	}

	rest, err := skel.CaptureRestPose()
	if err != nil {
		return nil, pose.CalibratedPose{}, nil, err
	}

	for _, ch := range []string{rig.ExpressionBlink, rig.ExpressionAa, rig.ExpressionIh, rig.ExpressionOu} {
		if !skel.HasExpression(ch) {
			log.Warn("rig lacks expression channel", "rig", skel.Name(), "channel", ch)
		}
	}

	calibrated := a.search.CalibrateAll(pose.NewEvaluator(skel, rest))

	app := pose.NewApplicator(skel, rest)
	app.SetPose(calibrated)
	return skel, calibrated, app, nil
}

func (a *Avatar) install(skel *rig.Skeleton, calibrated pose.CalibratedPose, app *pose.Applicator) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.disposed.Load() {
		return ErrDisposed
	}
	a.skel = skel
	a.calibrated = calibrated
	a.app = app
	a.loop.Attach(skel)
	a.publishLocked()
	return nil
}

// Reload swaps in a new rig and recalibrates. Animation state carries over.
func (a *Avatar) Reload(def *rig.Definition) error {
	if a.disposed.Load() {
		return ErrDisposed
	}

	skel, calibrated, app, err := a.build(def)
	if err != nil {
		return err
	}
	if err := a.install(skel, calibrated, app); err != nil {
		return err
	}

	log.Info("avatar reloaded", "id", a.id, "rig", skel.Name())
	return nil
}

// ID returns the avatar instance ID.
func (a *Avatar) ID() string {
	return a.id
}

// Calibration returns the calibrated arm pose.
func (a *Avatar) Calibration() pose.CalibratedPose {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calibrated
}

// SetRenderer replaces the renderer. Nil disables drawing.
func (a *Avatar) SetRenderer(r Renderer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.renderer = r
}

// StartTalking starts a talk session; see expression.Loop.StartTalking.
func (a *Avatar) StartTalking(d time.Duration) (string, error) {
	if a.disposed.Load() {
		return "", ErrDisposed
	}
	return a.loop.StartTalking(d)
}

// StopTalking ends the current talk session.
func (a *Avatar) StopTalking() error {
	if a.disposed.Load() {
		return ErrDisposed
	}
	return a.loop.StopTalking()
}

// Frame advances the avatar by dt: the calibrated pose is re-applied,
// the expression loop ticks, and the result is handed to the renderer.
func (a *Avatar) Frame(ctx context.Context, dt time.Duration) error {
	a.mu.Lock()
	if a.disposed.Load() || a.skel == nil {
		a.mu.Unlock()
		return ErrDisposed
	}

	a.app.ApplyFrame()
	a.loop.Tick(dt)
	a.seq++

	r := a.renderer
	var f Frame
	if r != nil {
		st := a.loop.State()
		f = Frame{
			AvatarID:    a.id,
			Seq:         a.seq,
			Clock:       st.Clock,
			RootYaw:     a.skel.RootYaw(),
			Bones:       snapshotBones(a.skel),
			Expressions: a.skel.Expressions(),
			Talking:     st.Talking,
		}
	}
	a.publishLocked()
	a.mu.Unlock()

	if r == nil {
		return nil
	}
	return r.RenderFrame(ctx, f)
}

// Run drives Frame at the configured rate until ctx is done or Stop is
// called. Render errors are logged and do not stop the loop. A Stop issued
// while no loop is running, e.g. right after `go a.Run(ctx)`, makes the
// next Run return nil immediately.
func (a *Avatar) Run(ctx context.Context) error {
	a.mu.Lock()
	switch {
	case a.disposed.Load():
		a.mu.Unlock()
		return ErrDisposed
	case a.running.Load():
		a.mu.Unlock()
		return ErrAlreadyRunning
	case a.stopPending:
		a.stopPending = false
		a.mu.Unlock()
		return nil
	}
	stopCh := make(chan struct{})
	done := make(chan struct{})
	a.stopCh = stopCh
	a.done = done
	a.running.Store(true)
	a.publishLocked()
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running.Store(false)
		a.stopCh = nil
		a.publishLocked()
		close(done)
		a.mu.Unlock()
	}()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	log.Debug("render loop started", "id", a.id, "fps", a.fps)
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stopCh:
			return nil

		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			err := a.Frame(ctx, dt)
			if errors.Is(err, ErrDisposed) {
				return nil
			}
			a.noteRenderResult(err)
		}
	}
}

func (a *Avatar) noteRenderResult(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		if a.renderErrs == 0 {
			log.Warn("render failed", "id", a.id, "error", err)
		}
		a.renderErrs++
		return
	}
	if a.renderErrs > 0 {
		log.Info("render recovered", "id", a.id, "failed_frames", a.renderErrs)
		a.renderErrs = 0
	}
}

// Stop ends Run and waits for it to return. When no loop is running the
// request is kept for the next Run.
func (a *Avatar) Stop() {
	a.mu.Lock()
	if !a.running.Load() {
		a.stopPending = true
		a.mu.Unlock()
		return
	}
	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}
	done := a.done
	a.mu.Unlock()

	<-done
}

// Dispose stops the render loop, then releases the rig and all pose and
// animation state. Safe to call more than once.
func (a *Avatar) Dispose() {
	if !a.disposed.CompareAndSwap(false, true) {
		return
	}
	a.Stop()

	a.mu.Lock()
	a.loop.Detach()
	a.skel = nil
	a.app = nil
	a.calibrated = pose.CalibratedPose{}
	a.renderer = nil
	a.publishLocked()
	a.mu.Unlock()

	log.Info("avatar disposed", "id", a.id)
}

// Status returns the latest published status.
func (a *Avatar) Status() Status {
	st := *a.status.Load()
	st.Running = a.running.Load()
	st.Disposed = a.disposed.Load()
	return st
}

func (a *Avatar) publishLocked() {
	st := &Status{
		ID:          a.id,
		Running:     a.running.Load(),
		Disposed:    a.disposed.Load(),
		Frames:      a.seq,
		Calibration: a.calibrated,
		Animation:   a.loop.State(),
	}
	if a.skel != nil {
		st.Rig = a.skel.Name()
		st.Expressions = a.skel.Expressions()
	}
	a.status.Store(st)
}
