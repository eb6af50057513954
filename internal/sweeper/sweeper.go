// Package sweeper periodically archives listings that outlived their
// TTL.
package sweeper

import (
	"fmt"

	"github.com/lotline/lotline/internal/inventory"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs the expiry sweep on a cron schedule.
type Sweeper struct {
	store *inventory.Store
	cron  *cron.Cron
	spec  string
	log   *zap.SugaredLogger
}

// New creates a sweeper. The spec is a standard 5-field cron
// expression (minute, hour, dom, month, dow).
func New(store *inventory.Store, spec string, log *zap.SugaredLogger) *Sweeper {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Sweeper{
		store: store,
		cron:  cron.New(),
		spec:  spec,
		log:   log.With("component", "sweeper"),
	}
}

// Start registers the sweep job and begins scheduling. One sweep runs
// immediately so a freshly started process does not serve stale rows
// until the first tick.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return fmt.Errorf("sweeper: schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.log.Infow("sweeper started", "schedule", s.spec)
	go s.sweep()
	return nil
}

// Stop halts scheduling. A sweep already in flight finishes.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Infow("sweeper stopped")
}

// Sweep archives expired listings once, on demand.
func (s *Sweeper) Sweep() (int64, error) {
	return s.store.RemoveExpired()
}

func (s *Sweeper) sweep() {
	n, err := s.store.RemoveExpired()
	if err != nil {
		s.log.Errorw("expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Infow("expiry sweep archived listings", "count", n)
	}
}
