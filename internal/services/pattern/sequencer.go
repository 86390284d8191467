package pattern

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	goerrors "github.com/go-errors/errors"
)

// DeviceClient is the set of bulb commands the sequencer drives.
//
// A (false, nil) result means the device did not apply the command; the sequencer
// logs it and keeps its schedule. A non-nil error is treated as a fault and ends
// the run with OutcomeFailed.
type DeviceClient interface {
	SetPower(ctx context.Context, deviceID string, on bool) (bool, error)
	SetColorHex(ctx context.Context, deviceID, hex string) (bool, error)
	SetColorHSB(ctx context.Context, deviceID string, hue, saturation int, brightness *int) (bool, error)
	SetTemperature(ctx context.Context, deviceID string, kelvin int) (bool, error)
	SetBrightness(ctx context.Context, deviceID string, brightness int) (bool, error)
}

// OutcomeStatus is the terminal state of a run.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "COMPLETED"
	OutcomeCancelled OutcomeStatus = "CANCELLED"
	OutcomeFailed    OutcomeStatus = "FAILED"
)

// RunOutcome is the result of Execute. Err is only set when Status is OutcomeFailed.
type RunOutcome struct {
	Status          OutcomeStatus
	Err             error
	CyclesCompleted int
}

// Progress is reported before each step is applied.
type Progress struct {
	Cycle    int
	Position int
	Step     ColorStep
}

// Sequencer turns pattern requests into timed device commands.
// A single Sequencer may execute many requests concurrently; each call to
// Execute owns its own session state.
type Sequencer struct {
	client  DeviceClient
	sleeper Sleeper
	logger  *log.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(sleeper Sleeper) Option {
	return func(s *Sequencer) {
		s.sleeper = sleeper
	}
}

// WithRand sets the random source used by PatternRandom.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sequencer) {
		s.rng = rng
	}
}

// WithSeed seeds the random source used by PatternRandom so shuffles are reproducible.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed)))
}

// WithLogger sets the logger used for command failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// NewSequencer creates a sequencer that sends commands through client.
func NewSequencer(client DeviceClient, opts ...Option) *Sequencer {
	s := &Sequencer{
		client:  client,
		sleeper: timerSleeper{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// RunOption configures a single Execute call.
type RunOption func(*session)

// WithProgress registers a callback invoked before each step is applied.
func WithProgress(fn func(Progress)) RunOption {
	return func(sess *session) {
		sess.onProgress = fn
	}
}

// WithRunID labels log lines for this run.
func WithRunID(id string) RunOption {
	return func(sess *session) {
		sess.runID = id
	}
}

// session is the per-run state. It is never shared between runs.
type session struct {
	seq        *Sequencer
	ctx        context.Context
	req        PatternRequest
	runID      string
	cycle      int
	completed  int
	onProgress func(Progress)
}

// Execute plays req on its device until every cycle has run or ctx is done.
//
// The bulb is powered on first. Each cycle orders the steps according to the
// pattern type, then applies, holds and transitions every step. Cancellation is
// observed before each cycle, before each step and during every sleep; once seen,
// no further commands are sent.
func (s *Sequencer) Execute(ctx context.Context, req PatternRequest, opts ...RunOption) (outcome RunOutcome) {
	sess := &session{seq: s, ctx: ctx, req: req}
	for _, opt := range opts {
		opt(sess)
	}

	defer func() {
		if r := recover(); r != nil {
			err := goerrors.Wrap(r, 2)
			s.logger.Printf("Pattern %s on %s panicked: %v\n%s", sess.label(), req.DeviceID, r, err.ErrorStack())
			outcome = RunOutcome{Status: OutcomeFailed, Err: err, CyclesCompleted: sess.completed}
		}
	}()

	if len(req.Steps) == 0 {
		s.logger.Printf("Pattern %s on %s has no color steps, nothing to do", sess.label(), req.DeviceID)
		return RunOutcome{Status: OutcomeCompleted}
	}

	err := sess.run()
	return sess.outcome(err)
}

func (sess *session) run() error {
	steps := slices.Clone(sess.req.Steps)
	settings := sess.req.Settings

	// Power-on is best effort; a failed result does not stop the run.
	if _, err := sess.setPower(true); err != nil {
		return err
	}

	for sess.cycle = 0; settings.Infinite() || sess.cycle < settings.RepeatCount; sess.cycle++ {
		if err := sess.ctx.Err(); err != nil {
			return err
		}

		ordered := sess.seq.orderSteps(steps, sess.cycle, settings.Type)
		for pos, step := range ordered {
			if err := sess.ctx.Err(); err != nil {
				return err
			}

			if sess.onProgress != nil {
				sess.onProgress(Progress{Cycle: sess.cycle, Position: pos, Step: step})
			}

			if err := sess.applyColor(step); err != nil {
				return err
			}
			if err := sess.hold(step); err != nil {
				return err
			}
			if err := sess.transition(step); err != nil {
				return err
			}
		}

		sess.completed++
	}

	return nil
}

func (sess *session) outcome(err error) RunOutcome {
	out := RunOutcome{CyclesCompleted: sess.completed}
	switch {
	case err == nil:
		out.Status = OutcomeCompleted
	case sess.ctx.Err() != nil && errors.Is(err, sess.ctx.Err()):
		out.Status = OutcomeCancelled
	default:
		out.Status = OutcomeFailed
		out.Err = err
	}
	return out
}

// applyColor sends the step's color using the first available method
// (hex, then HSB, then kelvin). Brightness gets its own command unless the HSB
// call already carried it, and only when the color command succeeded.
func (sess *session) applyColor(step ColorStep) error {
	var (
		ok     bool
		err    error
		viaHSB bool
	)

	client := sess.seq.client
	id := sess.req.DeviceID

	switch {
	case step.HasHex():
		ok, err = sess.call("hex color", func(ctx context.Context) (bool, error) {
			return client.SetColorHex(ctx, id, step.Hex)
		})
	case step.HasHSB():
		viaHSB = true
		ok, err = sess.call("HSB color", func(ctx context.Context) (bool, error) {
			return client.SetColorHSB(ctx, id, *step.Hue, *step.Saturation, step.Brightness)
		})
	case step.HasKelvin():
		ok, err = sess.call("temperature", func(ctx context.Context) (bool, error) {
			return client.SetTemperature(ctx, id, *step.Kelvin)
		})
	}
	if err != nil {
		return err
	}

	if ok && step.Brightness != nil && !viaHSB {
		if _, err := sess.setBrightness(*step.Brightness); err != nil {
			return err
		}
	}
	return nil
}

// hold keeps the step on the bulb for its duration. Pulse splits the hold in
// three equal parts: dim to a quarter of the step brightness, then restore.
func (sess *session) hold(step ColorStep) error {
	if sess.req.Settings.Type != PatternPulse {
		return sess.sleep(ms(step.DurationMs))
	}

	third := ms(step.DurationMs / 3)

	if err := sess.sleep(third); err != nil {
		return err
	}
	if step.Brightness != nil {
		if _, err := sess.setBrightness(max(1, *step.Brightness/4)); err != nil {
			return err
		}
	}
	if err := sess.sleep(third); err != nil {
		return err
	}
	if err := sess.applyColor(step); err != nil {
		return err
	}
	return sess.sleep(third)
}

// transition plays the inter-step effect. It runs after every step, including
// the last step of a cycle.
func (sess *session) transition(step ColorStep) error {
	settings := sess.req.Settings

	switch settings.Transition {
	case TransitionFlash:
		half := ms(settings.TransitionDurationMs / 2)
		if _, err := sess.setPower(false); err != nil {
			return err
		}
		if err := sess.sleep(half); err != nil {
			return err
		}
		if _, err := sess.setPower(true); err != nil {
			return err
		}
		return sess.sleep(half)

	case TransitionFade:
		// The device has no fade primitive; dim to half and hold for the transition time.
		current := 100
		if step.Brightness != nil {
			current = *step.Brightness
		}
		if _, err := sess.setBrightness(max(1, current/2)); err != nil {
			return err
		}
		return sess.sleep(ms(settings.TransitionDurationMs))
	}

	return nil
}

func (sess *session) setPower(on bool) (bool, error) {
	name := "power off"
	if on {
		name = "power on"
	}
	return sess.call(name, func(ctx context.Context) (bool, error) {
		return sess.seq.client.SetPower(ctx, sess.req.DeviceID, on)
	})
}

func (sess *session) setBrightness(brightness int) (bool, error) {
	return sess.call(fmt.Sprintf("brightness %d", brightness), func(ctx context.Context) (bool, error) {
		return sess.seq.client.SetBrightness(ctx, sess.req.DeviceID, brightness)
	})
}

// call runs one device command. Failed commands are logged and absorbed;
// errors are returned wrapped with the command name.
func (sess *session) call(command string, fn func(ctx context.Context) (bool, error)) (bool, error) {
	ok, err := fn(sess.ctx)
	if err != nil {
		return false, fmt.Errorf("%s command on %s: %w", command, sess.req.DeviceID, err)
	}
	if !ok {
		sess.seq.logger.Printf("Pattern %s on %s: %s command failed (cycle %d), continuing", sess.label(), sess.req.DeviceID, command, sess.cycle)
	}
	return ok, nil
}

func (sess *session) sleep(d time.Duration) error {
	return sess.seq.sleeper.Sleep(sess.ctx, d)
}

func (sess *session) label() string {
	if sess.runID == "" {
		return "run"
	}
	return sess.runID
}
