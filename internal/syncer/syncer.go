// internal/syncer/syncer.go
package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	conf "github.com/kweber84/erpimport/internal/config"
	"github.com/kweber84/erpimport/internal/imports"
	"github.com/kweber84/erpimport/internal/sources"
	_ "github.com/kweber84/erpimport/internal/sources/file"     // connector registration
	_ "github.com/kweber84/erpimport/internal/sources/storeapi" // connector registration
)

// Syncer runs the capture+normalize cycle for every configured supplier
// on a cron schedule. One cycle at a time; a tick that fires while the
// previous cycle still runs is skipped.
type Syncer struct {
	log   zerolog.Logger
	cfg   *conf.Config
	store *imports.Store

	mu      sync.Mutex
	running bool
	busy    bool
	cron    *cron.Cron
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cycles  uint64
}

func New(log zerolog.Logger, cfg *conf.Config, gdb *gorm.DB) *Syncer {
	return &Syncer{
		log:   log,
		cfg:   cfg,
		store: imports.NewStore(log, gdb),
	}
}

func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.cycles = 0

	spec := s.cfg.WatchCron
	if spec == "" {
		spec = "0 3 * * *"
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() { s.runCycle(ctx) })
	if err != nil {
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		cancel()
		return err
	}
	s.cron = c
	s.mu.Unlock()

	s.log.Info().Str("cron", spec).Msg("watch started")
	c.Start()

	// first cycle right away
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runCycle(ctx)
	}()
	return nil
}

func (s *Syncer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("watch stopped")
}

func (s *Syncer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runCycle processes all configured suppliers once. Per-supplier errors
// are logged and do not stop the cycle.
func (s *Syncer) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.log.Warn().Msg("previous cycle still running, tick skipped")
		return
	}
	s.busy = true
	s.cycles++
	n := s.cycles
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	s.log.Info().Uint64("cycle", n).Int("suppliers", len(s.cfg.Suppliers)).Msg("cycle started")

	for code, binding := range s.cfg.Suppliers {
		if ctx.Err() != nil {
			return
		}
		if err := s.runSupplier(ctx, code, binding); err != nil {
			s.log.Error().Err(err).Str("supplier", code).Msg("supplier cycle failed")
		}
	}
	s.log.Info().Uint64("cycle", n).Msg("cycle finished")
}

func (s *Syncer) runSupplier(ctx context.Context, code string, binding conf.SupplierSource) error {
	log := s.log.With().Str("supplier", code).Logger()

	src, err := BuildSource(log, binding)
	if err != nil {
		return err
	}
	supplier, err := s.store.SupplierByCode(code)
	if err != nil {
		return err
	}
	sourceType, err := s.store.SourceTypeByCode(binding.SourceTypeCode())
	if err != nil {
		return err
	}

	capturer := imports.NewCapturer(log, s.store)
	res, err := capturer.Run(ctx, src, supplier, sourceType, sources.FetchOptions{})
	if err != nil {
		return err
	}
	log.Info().Uint("run_id", res.RunID).Int("captured", res.Captured).Msg("capture done")

	norm := imports.NewNormalizer(log, s.store)
	sum, err := norm.NormalizeSupplier(ctx, code)
	if err != nil {
		return err
	}
	log.Info().Int("runs", sum.TotalRuns).Int("normalized", sum.Normalized).Int("errors", sum.Errored).Msg("normalize done")
	return nil
}

// BuildSource instantiates the connector a supplier is bound to.
func BuildSource(log zerolog.Logger, binding conf.SupplierSource) (sources.Source, error) {
	f, ok := sources.Get(binding.Source)
	if !ok {
		return nil, fmt.Errorf("unknown source connector %q", binding.Source)
	}
	return f(log, binding.Config)
}
