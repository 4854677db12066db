package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/wbcache/backing/filestore"
	"github.com/sarchlab/wbcache/backing/memstore"
	"github.com/sarchlab/wbcache/backing/sqlitestore"
	"github.com/sarchlab/wbcache/cache"
	"github.com/sarchlab/wbcache/config"
	"github.com/sarchlab/wbcache/datarecording"
	"github.com/sarchlab/wbcache/hooking"
	"github.com/sarchlab/wbcache/tracing"
)

// A session is a cache over the configured backing store, together with the
// hooks and recorders asked for on the command line. Code that shares the
// cache with other goroutines goes through shared.
type session struct {
	cfg      config.Config
	store    cache.BackingStore
	cache    *cache.Cache
	shared   *cache.SyncCache
	recorder datarecording.DataRecorder
	events   *datarecording.EventRecorder
	exec     *datarecording.ExecRecorder
	closers  []func() error

	loadTime   *tracing.AverageTimeTracer
	storeTime  *tracing.AverageTimeTracer
	loadTotal  *tracing.TotalTimeTracer
	storeTotal *tracing.TotalTimeTracer
	logger     *log.Logger
}

func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return config.Config{}, err
	}

	if opts.backend != "" {
		cfg.Backend = opts.backend
	}

	if opts.numLines != 0 {
		cfg.NumLines = opts.numLines
	}

	if opts.record != "" {
		cfg.RecordEvents = true
		cfg.RecordPath = opts.record
	}

	return cfg, cfg.Validate()
}

func openSession(opts *options, stderr io.Writer) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}

	if err := s.openStore(); err != nil {
		return nil, err
	}

	s.loadTime = tracing.NewAverageTimeTracer(
		tracing.WallClock{}, tracing.KindIs(tracing.KindLoad))
	s.storeTime = tracing.NewAverageTimeTracer(
		tracing.WallClock{}, tracing.KindIs(tracing.KindStore))
	s.loadTotal = tracing.NewTotalTimeTracer(
		tracing.WallClock{}, tracing.KindIs(tracing.KindLoad))
	s.storeTotal = tracing.NewTotalTimeTracer(
		tracing.WallClock{}, tracing.KindIs(tracing.KindStore))
	traced := tracing.NewTracedStore(s.store,
		s.loadTime, s.storeTime, s.loadTotal, s.storeTotal)

	if err := s.buildCache(opts, stderr, traced); err != nil {
		return nil, errors.Join(err, s.closeAll())
	}

	return s, nil
}

func (s *session) openStore() error {
	switch s.cfg.Backend {
	case config.BackendMemory:
		s.store = memstore.New()
	case config.BackendSQLite:
		store, err := sqlitestore.Open(s.cfg.DBPath)
		if err != nil {
			return err
		}

		s.store = store
		s.closers = append(s.closers, store.Close)
	case config.BackendFile:
		store, err := filestore.NewOS(s.cfg.Dir)
		if err != nil {
			return err
		}

		s.store = store
	default:
		return fmt.Errorf("unknown backend %q", s.cfg.Backend)
	}

	return nil
}

func (s *session) buildCache(
	opts *options,
	stderr io.Writer,
	store cache.BackingStore,
) error {
	builder := cache.MakeBuilder().
		WithNumLines(s.cfg.NumLines).
		WithEntrySize(s.cfg.EntrySize).
		WithIDSize(s.cfg.IDSize).
		WithMaxBytes(s.cfg.MaxBytes).
		WithBackingStore(store).
		WithFlushAtExit()

	if opts.verbose {
		s.logger = log.New(stderr, "", 0)
		builder = builder.WithHook(hooking.NewEventLogger(s.logger))
	}

	if s.cfg.RecordEvents {
		if err := s.startRecording(); err != nil {
			return err
		}

		builder = builder.WithHook(s.events)
	}

	c, err := builder.Build(s.cfg.Backend)
	if err != nil {
		return err
	}

	s.cache = c
	s.shared = cache.NewSyncCache(c)

	return nil
}

func (s *session) startRecording() error {
	recorder, err := datarecording.NewDataRecorder(s.cfg.RecordPath)
	if err != nil {
		return err
	}

	s.recorder = recorder

	s.events, err = datarecording.NewEventRecorder(recorder)
	if err != nil {
		return err
	}

	s.exec, err = datarecording.NewExecRecorder(recorder)
	if err != nil {
		return err
	}

	s.exec.Start()

	return nil
}

// close flushes the cache into the backing store and releases everything
// the session opened.
func (s *session) close() error {
	var errs []error

	if s.shared != nil {
		if err := s.shared.Close(); !errors.Is(err, cache.ErrClosed) {
			errs = append(errs, err)
		}
	}

	errs = append(errs, s.closeAll())

	if s.logger != nil {
		s.logger.Printf(
			"%d loads, average %v, total %v; %d stores, average %v, total %v",
			s.loadTime.TotalCount(), s.loadTime.AverageTime(),
			s.loadTotal.TotalTime(),
			s.storeTime.TotalCount(), s.storeTime.AverageTime(),
			s.storeTotal.TotalTime())
	}

	return errors.Join(errs...)
}

func (s *session) closeAll() error {
	var errs []error

	if s.recorder != nil {
		if s.events != nil {
			errs = append(errs, s.events.Err())
		}

		if s.exec != nil {
			errs = append(errs, s.exec.End())
		}

		errs = append(errs, s.recorder.Close())
		s.recorder = nil
	}

	for _, c := range s.closers {
		errs = append(errs, c())
	}

	s.closers = nil

	return errors.Join(errs...)
}

// encode turns a command-line string into a fixed-size buffer. Shorter
// strings are padded with zero bytes.
func encode(s string, size int, what string) ([]byte, error) {
	if len(s) > size {
		return nil, fmt.Errorf("%s %q is longer than %d bytes", what, s, size)
	}

	buf := make([]byte, size)
	copy(buf, s)

	return buf, nil
}
