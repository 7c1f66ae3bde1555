package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/fan"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"codeberg.org/mutker/ipmifanctl/internal/metrics"
	"codeberg.org/mutker/ipmifanctl/internal/notify"
	"codeberg.org/mutker/ipmifanctl/internal/sensor"
	"codeberg.org/mutker/ipmifanctl/internal/telemetry"
	"github.com/rs/zerolog"
)

type Options struct {
	// Interval is the target time between the starts of two iterations.
	Interval time.Duration
	// UsageWindow is the time a sensor read spends measuring CPU usage.
	UsageWindow time.Duration
	// SettlePause follows every applied or unchanged decision.
	SettlePause time.Duration
	// ErrorBackoff replaces both pauses after an invalid sample.
	ErrorBackoff time.Duration
	// SnapshotEvery logs a system snapshot on every Nth iteration; 0 disables it.
	SnapshotEvery int
	// AlertTemperature triggers an alert line when MaxTemp reaches it.
	AlertTemperature int
}

func (o Options) Validate() error {
	errFactory := errors.New()

	if o.Interval <= 0 || o.ErrorBackoff <= 0 {
		return errFactory.WithData(ErrInvalidOptions, o)
	}
	if o.UsageWindow < 0 || o.SettlePause < 0 || o.SnapshotEvery < 0 {
		return errFactory.WithData(ErrInvalidOptions, o)
	}

	return nil
}

// longPause is what remains of Interval after sampling and settling.
func (o Options) longPause() time.Duration {
	return max(o.Interval-o.UsageWindow-o.SettlePause, 0)
}

// Deps are the collaborators of a Loop.
type Deps struct {
	Reader    sensor.Reader
	Fan       fan.Controller
	Publisher telemetry.Publisher
	Snapshots telemetry.Snapshotter
	History   metrics.Collector
	// Notifier receives speed changes and alerts; nil disables it.
	Notifier notify.Notifier
	Logger   logger.Logger
}

// Status is a copy of the loop's latest outcome, safe to read from other
// goroutines.
type Status struct {
	Iteration   int       `json:"iteration"`
	SampleValid bool      `json:"sample_valid"`
	MaxTemp     int       `json:"max_temp"`
	FanLevel    int       `json:"fan_level"`
	LastReason  string    `json:"last_reason"`
	LastSuccess bool      `json:"last_success"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Loop struct {
	deps Deps
	opts Options

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	// owned by the goroutine calling Run or Iterate
	state     State
	iteration int

	mu     sync.RWMutex
	status Status
}

// NewLoop returns a loop starting from NewState. Fans are assumed to be in
// manual mode already.
func NewLoop(deps Deps, opts Options) (*Loop, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if deps.Notifier == nil {
		deps.Notifier = notify.Nop()
	}

	st := NewState(0)

	return &Loop{
		deps:   deps,
		opts:   opts,
		sleep:  sleepContext,
		now:    time.Now,
		state:  st,
		status: Status{FanLevel: int(st.LastSpeed)},
	}, nil
}

// Run iterates until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.deps.Logger.Info().
		Dur("interval", l.opts.Interval).
		Dur("usage_window", l.opts.UsageWindow).
		Dur("settle_pause", l.opts.SettlePause).
		Dur("error_backoff", l.opts.ErrorBackoff).
		Msg("Control loop started")

	for {
		wait := l.opts.ErrorBackoff
		if _, err := l.Iterate(ctx); err == nil {
			if l.sleep(ctx, l.opts.SettlePause) != nil {
				return nil
			}
			wait = l.opts.longPause()
		}

		if l.sleep(ctx, wait) != nil {
			return nil
		}
	}
}

// Iterate runs one sample, decide, actuate pass. A non-nil error means the
// sample was unusable: no decision was made and State is untouched.
func (l *Loop) Iterate(ctx context.Context) (Decision, error) {
	l.iteration++
	defer l.snapshotIfDue(ctx)

	sample, err := l.readSample(ctx)
	if err != nil {
		var ev *zerolog.Event
		var appErr errors.Error
		if errors.As(err, &appErr) {
			ev = l.deps.Logger.WarnWithCode(appErr).Int("iteration", l.iteration)
		} else {
			ev = l.deps.Logger.Warn().Err(err).Int("iteration", l.iteration)
		}
		if fields, ok := errors.DataOf(err).(sensor.InvalidFields); ok {
			ev = ev.Interface("invalid_fields", fields)
		}
		ev.Dur("backoff", l.opts.ErrorBackoff).Msg("Invalid sample, skipping iteration")

		l.updateStatus(func(s *Status) { s.SampleValid = false })
		return Decision{}, err
	}

	maxTemp := sample.MaxTemp()
	l.deps.Logger.Info().
		Int("iteration", l.iteration).
		Int("inlet", sample.InletTemp).
		Int("exhaust", sample.ExhaustTemp).
		Ints("cpu_temps", sample.CPUTemps).
		Floats64("cpu_usage", sample.CPUUsages).
		Int("max_temp", maxTemp).
		Stringer("fan_level", l.state.LastSpeed).
		Msg("Sample")

	if l.opts.AlertTemperature > 0 && maxTemp >= l.opts.AlertTemperature {
		l.deps.Logger.Error().
			Int("max_temp", maxTemp).
			Int("threshold", l.opts.AlertTemperature).
			Msg("High temperature alert")
		l.notify(ctx, notify.Alert, fmt.Sprintf("High temperature: %d°C (alert at %d°C), fan at %s",
			maxTemp, l.opts.AlertTemperature, l.state.LastSpeed))
	}

	if err := l.deps.Publisher.Publish(maxTemp); err != nil {
		l.deps.Logger.Warn().Err(err).Msg("Failed to publish max temperature")
	}

	previous := l.state.LastSpeed
	decision, next := Decide(sample, l.state)
	l.state = next

	if decision.Speed != fan.Unchanged {
		l.apply(ctx, &decision, previous)
	} else {
		l.deps.Logger.Debug().
			Stringer("fan_level", previous).
			Str("reason", decision.Reason).
			Int("temp_delta", decision.TempDelta).
			Msg("Fan speed unchanged")
	}

	l.record(ctx, sample, decision, previous)
	l.updateStatus(func(s *Status) {
		s.SampleValid = true
		s.MaxTemp = maxTemp
		s.FanLevel = int(l.state.LastSpeed)
		s.LastReason = decision.Reason
		s.LastSuccess = decision.Success
	})

	return decision, nil
}

// Status returns a copy of the latest iteration outcome.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.status
}

func (l *Loop) readSample(ctx context.Context) (sensor.Sample, error) {
	raw, err := l.deps.Reader.Read(ctx)
	if err != nil {
		return sensor.Sample{}, err
	}

	return sensor.Validate(raw)
}

// apply writes the decided level and commits it to State on success only,
// so a failed write is retried by the next iteration.
func (l *Loop) apply(ctx context.Context, d *Decision, previous fan.Level) {
	if err := l.deps.Fan.SetLevel(ctx, d.Speed); err != nil {
		d.Success = false
		d.Reason = fmt.Sprintf("failed to set %s", d.Speed)
		l.deps.Logger.Error().
			Err(err).
			Stringer("from", previous).
			Stringer("to", d.Speed).
			Msg("Fan speed change failed")
		return
	}

	l.state.Commit(d.Speed, d.MaxTemp)

	ev := l.deps.Logger.Info().
		Stringer("from", previous).
		Stringer("to", d.Speed).
		Str("reason", d.Reason).
		Int("max_temp", d.MaxTemp).
		Int("temp_delta", d.TempDelta).
		Bool("spike", d.Spike)
	msg := fmt.Sprintf("Fan speed %s to %s", direction(previous, d.Speed), d.Speed)
	if rpm, ok := l.deps.Fan.RPM(ctx); ok {
		ev = ev.Int("rpm", rpm)
		msg += fmt.Sprintf(" (%d RPM)", rpm)
	}
	ev.Msg("Fan speed changed")

	l.notify(ctx, notify.SpeedChange, fmt.Sprintf("%s: %s, max %d°C", msg, d.Reason, d.MaxTemp))
}

// notify never fails the iteration.
func (l *Loop) notify(ctx context.Context, kind notify.Kind, msg string) {
	if err := l.deps.Notifier.Notify(ctx, notify.Event{Kind: kind, Message: msg}); err != nil {
		l.deps.Logger.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to send notification")
	}
}

func direction(from, to fan.Level) string {
	if to < from {
		return "decreased"
	}
	return "increased"
}

func (l *Loop) record(ctx context.Context, sample sensor.Sample, d Decision, previous fan.Level) {
	snapshot := &metrics.DecisionSnapshot{
		Timestamp: l.now(),
		Temperature: metrics.TempMetrics{
			Inlet:   sample.InletTemp,
			Exhaust: sample.ExhaustTemp,
			Max:     d.MaxTemp,
			Delta:   d.TempDelta,
		},
		Usage: metrics.UsageMetrics{Spike: d.Spike},
		Fan: metrics.FanMetrics{
			Previous: int(previous),
			Target:   int(d.Speed),
		},
		Decision: metrics.DecisionMetrics{
			Reason:  d.Reason,
			Success: d.Success,
		},
	}
	for _, t := range sample.CPUTemps {
		snapshot.Temperature.CPUMax = max(snapshot.Temperature.CPUMax, t)
	}
	for _, u := range sample.CPUUsages {
		snapshot.Usage.Max = max(snapshot.Usage.Max, u)
	}

	if err := l.deps.History.Record(ctx, snapshot); err != nil {
		l.deps.Logger.Warn().Err(err).Msg("Failed to record decision")
	}
}

func (l *Loop) snapshotIfDue(ctx context.Context) {
	if l.opts.SnapshotEvery == 0 || l.iteration%l.opts.SnapshotEvery != 0 || ctx.Err() != nil {
		return
	}

	snap, err := l.deps.Snapshots.Snapshot(ctx)
	if err != nil {
		l.deps.Logger.Warn().Err(err).Msg("Failed to collect system snapshot")
		return
	}

	l.deps.Logger.Info().
		Int("iteration", l.iteration).
		Uint64("mem_total", snap.Memory.Total).
		Uint64("mem_used", snap.Memory.Used).
		Float64("mem_used_percent", snap.Memory.UsedPercent).
		Ints("freq_mhz", snap.Frequency.PerCPU).
		Int("freq_avg_mhz", snap.Frequency.Average).
		Msg("System snapshot")
}

func (l *Loop) updateStatus(fn func(s *Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fn(&l.status)
	l.status.Iteration = l.iteration
	l.status.UpdatedAt = l.now()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
