package probe

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
)

// DefaultSchedule is the cron spec used by the server-side prober.
const DefaultSchedule = "@every 30s"

// Scheduler runs probe rounds on a cron schedule inside the server process.
// Unlike the client prober it sees real HTTP responses, but it keeps the
// same reachability semantics so both sides agree on up and down.
type Scheduler struct {
	engine  *Engine
	source  CardSource
	spec    string
	timeout time.Duration
	log     logger.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	started bool
	running sync.Mutex     // held while a round is in flight
	initial sync.WaitGroup // the round Start kicks off
	spawn   func(func())
}

// scheduleParser accepts five or six field specs and @descriptors.
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is a schedule NewScheduler accepts.
func ValidateSchedule(spec string) error {
	_, err := scheduleParser.Parse(spec)
	return err
}

// NewScheduler builds a scheduler. An empty spec selects DefaultSchedule.
func NewScheduler(engine *Engine, source CardSource, spec string, log logger.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if log == nil {
		log = logger.Noop()
	}

	s := &Scheduler{
		engine:  engine,
		source:  source,
		spec:    spec,
		timeout: 2 * DefaultTimeout,
		log:     log,
		cron:    cron.New(cron.WithParser(scheduleParser)),
		spawn:   func(f func()) { go f() },
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid probe schedule: "+spec,
			"Use a cron expression or a descriptor such as '@every 30s'.")
	}
	return s, nil
}

// Start begins scheduling and runs one round right away.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.initial.Add(1)
	s.spawn(func() {
		defer s.initial.Done()
		s.tick()
	})
	s.log.Info("health prober scheduled (%s)", s.spec)
}

// Stop halts scheduling, waits for a running round and resets the engine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.initial.Wait()
	s.running.Lock()
	s.engine.Reset()
	s.running.Unlock()
}

// Engine exposes the underlying engine for readers.
func (s *Scheduler) Engine() *Engine {
	return s.engine
}

// tick skips when the previous round is still running.
func (s *Scheduler) tick() {
	if !s.running.TryLock() {
		s.log.Debug("probe round still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	cards, err := s.source(ctx)
	if err != nil {
		s.log.Warn("probe round skipped: %v", err)
		return
	}
	snap := s.engine.ProbeCards(ctx, cards)
	s.log.Debug("probed %d cards in %s", len(snap), time.Since(start).Round(time.Millisecond))
}
