// Package scheduler drives the alert pipeline's periodic triggers. Each
// trigger has its own cadence and at-most-one run in flight; a failing
// trigger never blocks the others.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/secretaryai/secretary/internal/models"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/logger"
	"github.com/secretaryai/secretary/pkg/metrics"
)

// Trigger names, used in logs and metrics labels.
const (
	TriggerEmailPoll    = "email_poll"
	TriggerCalendarPoll = "calendar_poll"
	TriggerReminders    = "meeting_reminders"
	TriggerBriefing     = "morning_briefing"
	TriggerFlush        = "alert_flush"
)

const (
	defaultEmailInterval    = 5 * time.Minute
	defaultCalendarInterval = 10 * time.Minute
	defaultReminderInterval = time.Minute
	defaultBriefingInterval = time.Minute
	defaultFlushInterval    = 30 * time.Second
	defaultFlushGrace       = 10 * time.Second
	defaultTriggerTimeout   = 2 * time.Minute
)

// Cadences bundles the per-trigger intervals. Zero values fall back to the
// defaults above.
type Cadences struct {
	EmailPoll    time.Duration
	CalendarPoll time.Duration
	Reminders    time.Duration
	Briefing     time.Duration
	Flush        time.Duration

	FlushGrace     time.Duration
	TriggerTimeout time.Duration
}

// Scheduler owns the cron instance and the per-trigger in-flight guards.
type Scheduler struct {
	users     *services.UserService
	emails    *services.EmailService
	calendars *services.CalendarService
	briefings *services.BriefingService
	alerts    *services.AlertService

	cadences Cadences
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	inFlight map[string]*atomic.Bool
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for briefing due checks.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler over the pipeline services.
func New(
	users *services.UserService,
	emails *services.EmailService,
	calendars *services.CalendarService,
	briefings *services.BriefingService,
	alerts *services.AlertService,
	cadences Cadences,
	opts ...Option,
) (*Scheduler, error) {
	if users == nil || alerts == nil {
		return nil, errors.New("scheduler: user and alert services are required")
	}

	applyCadenceDefaults(&cadences)

	s := &Scheduler{
		users:     users,
		emails:    emails,
		calendars: calendars,
		briefings: briefings,
		alerts:    alerts,
		cadences:  cadences,
		now:       time.Now,
		log:       logger.WithModule("scheduler"),
		inFlight: map[string]*atomic.Bool{
			TriggerEmailPoll:    {},
			TriggerCalendarPoll: {},
			TriggerReminders:    {},
			TriggerBriefing:     {},
			TriggerFlush:        {},
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s, nil
}

func applyCadenceDefaults(c *Cadences) {
	if c.EmailPoll <= 0 {
		c.EmailPoll = defaultEmailInterval
	}
	if c.CalendarPoll <= 0 {
		c.CalendarPoll = defaultCalendarInterval
	}
	if c.Reminders <= 0 {
		c.Reminders = defaultReminderInterval
	}
	if c.Briefing <= 0 {
		c.Briefing = defaultBriefingInterval
	}
	if c.Flush <= 0 {
		c.Flush = defaultFlushInterval
	}
	if c.FlushGrace <= 0 {
		c.FlushGrace = defaultFlushGrace
	}
	if c.TriggerTimeout <= 0 {
		c.TriggerTimeout = defaultTriggerTimeout
	}
}

// Start registers every trigger with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	type trigger struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}

	triggers := []trigger{
		{TriggerEmailPoll, s.cadences.EmailPoll, s.CheckEmails},
		{TriggerCalendarPoll, s.cadences.CalendarPoll, s.SyncCalendars},
		{TriggerReminders, s.cadences.Reminders, s.SendMeetingReminders},
		{TriggerBriefing, s.cadences.Briefing, s.SendMorningBriefings},
		{TriggerFlush, s.cadences.Flush, s.FlushPending},
	}

	for _, t := range triggers {
		t := t
		spec := fmt.Sprintf("@every %s", t.interval)
		if _, err := s.cron.AddFunc(spec, func() {
			s.runTrigger(t.name, t.run)
		}); err != nil {
			return fmt.Errorf("scheduler: register %s: %w", t.name, err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.Duration("email_poll", s.cadences.EmailPoll),
		zap.Duration("calendar_poll", s.cadences.CalendarPoll),
		zap.Duration("flush", s.cadences.Flush))
	return nil
}

// Stop halts the underlying cron scheduler, waiting for running jobs.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// runTrigger executes one trigger run under its in-flight guard. A tick that
// overlaps a still-running previous tick for the same trigger is skipped.
func (s *Scheduler) runTrigger(name string, run func(context.Context) error) {
	guard := s.inFlight[name]
	if !guard.CompareAndSwap(false, true) {
		s.log.Debug("trigger still running, skipping tick", zap.String("trigger", name))
		metrics.TriggerRuns.WithLabelValues(name, "skipped").Inc()
		return
	}
	defer guard.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.cadences.TriggerTimeout)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	metrics.TriggerDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TriggerRuns.WithLabelValues(name, "failure").Inc()
		s.log.Warn("trigger run failed", zap.String("trigger", name), zap.Error(err))
		return
	}
	metrics.TriggerRuns.WithLabelValues(name, "success").Inc()
}

// CheckEmails polls every configured mailbox once. Per-user failures are
// collected, not fatal to the batch.
func (s *Scheduler) CheckEmails(ctx context.Context) error {
	if s.emails == nil {
		return nil
	}
	return s.forEachUser(ctx, func(ctx context.Context, user *models.User) error {
		if !user.HasMailbox() {
			return nil
		}
		created, err := s.emails.CheckUser(ctx, user)
		if err != nil {
			return fmt.Errorf("user %s: %w", user.ID, err)
		}
		if created > 0 {
			s.log.Info("email poll created alerts",
				zap.String("user_id", user.ID),
				zap.Int("alerts", created))
		}
		return nil
	})
}

// SyncCalendars mirrors upstream calendar events for every configured user.
func (s *Scheduler) SyncCalendars(ctx context.Context) error {
	if s.calendars == nil {
		return nil
	}
	return s.forEachUser(ctx, func(ctx context.Context, user *models.User) error {
		if !user.HasCalendar() {
			return nil
		}
		if _, err := s.calendars.SyncUser(ctx, user); err != nil {
			return fmt.Errorf("user %s: %w", user.ID, err)
		}
		return nil
	})
}

// SendMeetingReminders fires reminder alerts for events entering their
// reminder window.
func (s *Scheduler) SendMeetingReminders(ctx context.Context) error {
	if s.calendars == nil {
		return nil
	}
	return s.forEachUser(ctx, func(ctx context.Context, user *models.User) error {
		if _, err := s.calendars.SendDueReminders(ctx, user.ID); err != nil {
			return fmt.Errorf("user %s: %w", user.ID, err)
		}
		return nil
	})
}

// SendMorningBriefings generates the daily briefing for every user whose
// briefing time has passed. Deduplication keeps it to one per user per day.
func (s *Scheduler) SendMorningBriefings(ctx context.Context) error {
	if s.briefings == nil {
		return nil
	}
	now := s.now()
	return s.forEachUser(ctx, func(ctx context.Context, user *models.User) error {
		if !s.briefings.Due(user, now) {
			return nil
		}
		if _, err := s.briefings.GenerateForUser(ctx, user); err != nil {
			return fmt.Errorf("user %s: %w", user.ID, err)
		}
		return nil
	})
}

// FlushPending transitions pending alerts past the grace period to sent.
func (s *Scheduler) FlushPending(ctx context.Context) error {
	if s.alerts == nil {
		return nil
	}
	flushed, err := s.alerts.FlushPending(ctx, s.cadences.FlushGrace)
	if err != nil {
		return err
	}
	if flushed > 0 {
		s.log.Debug("flushed pending alerts", zap.Int64("count", flushed))
	}
	return nil
}

// RunOnce executes every trigger sequentially. Primarily used in tests.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	errs = multierr.Append(errs, s.CheckEmails(ctx))
	errs = multierr.Append(errs, s.SyncCalendars(ctx))
	errs = multierr.Append(errs, s.SendMeetingReminders(ctx))
	errs = multierr.Append(errs, s.SendMorningBriefings(ctx))
	errs = multierr.Append(errs, s.FlushPending(ctx))
	return errs
}

// forEachUser applies fn to every active user, collecting per-user failures
// so one broken account does not starve the rest.
func (s *Scheduler) forEachUser(ctx context.Context, fn func(context.Context, *models.User) error) error {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return err
	}

	var errs error
	for i := range users {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		if err := fn(ctx, &users[i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
