// Package service provides the evaluation service that wires loaders, the
// domain engines and the worker pool, and keeps the latest report for the
// HTTP API.
package service

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	workerpool "github.com/okian/faceval/internal/adapters/mq/worker"
	"github.com/okian/faceval/internal/adapters/report"
	"github.com/okian/faceval/internal/adapters/repository"
	"github.com/okian/faceval/internal/config"
	"github.com/okian/faceval/internal/domain/calibration"
	"github.com/okian/faceval/internal/domain/harmonize"
	"github.com/okian/faceval/internal/domain/join"
	"github.com/okian/faceval/internal/domain/taxonomy"
	"github.com/okian/faceval/pkg/logger"
)

// Service evaluates model predictions against ground truth.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	harmonizer *harmonize.Harmonizer
	pool       *workerpool.Pool

	// Configuration
	workerCount     int
	maxDropRatio    float64
	calibrationBins int
	attributes      []taxonomy.Attribute

	// State
	last    *report.Report
	runs    int
	failed  int
	lastRun time.Time

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets how many models are evaluated concurrently.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets the store used to load CSV inputs.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithHarmonizer sets the label harmonizer.
func WithHarmonizer(h *harmonize.Harmonizer) Option {
	return func(s *Service) {
		if h != nil {
			s.harmonizer = h
		}
	}
}

// WithMaxDropRatio sets the join drop ratio above which a warning is raised.
func WithMaxDropRatio(ratio float64) Option {
	return func(s *Service) {
		if ratio >= 0 && ratio <= 1 {
			s.maxDropRatio = ratio
		}
	}
}

// WithCalibrationBins sets the bucket count of fixed-width calibration.
func WithCalibrationBins(bins int) Option {
	return func(s *Service) {
		if bins > 0 {
			s.calibrationBins = bins
		}
	}
}

// WithAttributes restricts the evaluated attributes.
func WithAttributes(attrs ...taxonomy.Attribute) Option {
	return func(s *Service) {
		if len(attrs) > 0 {
			s.attributes = attrs
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		maxDropRatio:    join.DefaultMaxDropRatio,
		calibrationBins: calibration.DefaultBins,
		attributes:      taxonomy.All(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewCSVStore(repository.WithLogger(s.logger))
	}
	if s.harmonizer == nil {
		s.harmonizer = harmonize.Default()
	}
	s.pool = workerpool.NewPool(s.workerCount, workerpool.WithLogger(s.logger.Named("worker-pool")))
	return s
}

// NewFromConfig builds a Service from process configuration. Options are
// applied after the configuration and take precedence.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Service, error) {
	h, err := HarmonizerFromConfig(cfg.Harmonization)
	if err != nil {
		return nil, err
	}
	attrs, err := parseAttributes(cfg.Attributes)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithMaxDropRatio(cfg.MaxDropRatio),
		WithCalibrationBins(cfg.CalibrationBins),
		WithHarmonizer(h),
		WithAttributes(attrs...),
	}
	return New(append(base, opts...)...), nil
}

// HarmonizerFromConfig layers the configured entries on top of the built-in
// tables.
func HarmonizerFromConfig(h config.Harmonization) (*harmonize.Harmonizer, error) {
	extra := map[taxonomy.Attribute]map[string]string{
		taxonomy.Gender: h.Gender,
		taxonomy.Race:   h.Race,
		taxonomy.Age:    h.Age,
	}
	tables := harmonize.DefaultTables()
	for i, t := range tables {
		if entries := extra[t.Attribute]; len(entries) > 0 || h.Version != "" {
			tables[i] = t.With(h.Version, entries)
		}
	}
	out, err := harmonize.New(tables...)
	if err != nil {
		return nil, fmt.Errorf("harmonization tables: %w", err)
	}
	return out, nil
}

func parseAttributes(names []string) ([]taxonomy.Attribute, error) {
	out := make([]taxonomy.Attribute, 0, len(names))
	for _, n := range names {
		a, err := taxonomy.ParseAttribute(n)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Attributes returns the evaluated attributes.
func (s *Service) Attributes() []taxonomy.Attribute {
	out := make([]taxonomy.Attribute, len(s.attributes))
	copy(out, s.attributes)
	return out
}

// Report returns the most recent report, if any run completed.
func (s *Service) Report() (*report.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.last != nil
}

func (s *Service) publish(rep *report.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = rep
	s.runs++
	s.failed += len(rep.Failed())
	s.lastRun = rep.GeneratedAt
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"workerCount":     s.workerCount,
		"maxDropRatio":    s.maxDropRatio,
		"calibrationBins": s.calibrationBins,
		"runs":            s.runs,
		"failedModels":    s.failed,
	}
	attrs := make([]string, len(s.attributes))
	for i, a := range s.attributes {
		attrs[i] = string(a)
	}
	stats["attributes"] = attrs

	versions := map[string]string{}
	for _, a := range s.attributes {
		versions[string(a)] = s.harmonizer.Version(a)
	}
	stats["harmonization"] = versions

	if s.last != nil {
		stats["lastRunID"] = s.last.RunID
		stats["lastRunAt"] = s.lastRun.Format(time.RFC3339)
		stats["models"] = len(s.last.Models)
	}
	return stats
}
