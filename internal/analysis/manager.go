package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/packetscope/packetscope/internal/analysis/source"
	"github.com/packetscope/packetscope/internal/analysis/stats"
	"github.com/packetscope/packetscope/internal/analysis/types"
	"github.com/packetscope/packetscope/internal/analysis/viewport"
	"github.com/packetscope/packetscope/internal/config"
	apperrors "github.com/packetscope/packetscope/internal/errors"
	"github.com/packetscope/packetscope/internal/logger"
	"github.com/packetscope/packetscope/internal/metrics"
)

// Manager tracks all analyses known to the service, keyed by ID. Each
// analysis owns one Analyzer; the manager enforces the concurrency cap
// and provides lookup for the API layer.
type Manager struct {
	cfg    *config.Config
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// newSource builds the packet source for a path. Tests swap it out.
	newSource func(path string) source.Source

	mu       sync.RWMutex
	analyses map[string]*Analysis
}

// Analysis is one tracked analysis run plus its derived, computed-once
// statistics.
type Analysis struct {
	ID        string
	Path      string
	CreatedAt time.Time

	analyzer *Analyzer
	cfg      config.AnalysisConfig

	statsOnce sync.Once
	snapshot  stats.Snapshot
}

// NewManager creates a manager. The analyses it starts outlive API
// requests; their lifetime is bound to the manager, ended by Shutdown.
func NewManager(cfg *config.Config, log logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		logger: log.WithField("component", "analysis_manager"),
		ctx:    ctx,
		cancel: cancel,
		newSource: func(path string) source.Source {
			return source.NewFFprobeSource(path, cfg.FFprobe.BinaryPath, cfg.FFprobe.ProbeTimeout)
		},
		analyses: make(map[string]*Analysis),
	}
}

// Create starts a new analysis over the container file at path.
func (m *Manager) Create(path string) (*Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeLocked() >= m.cfg.Analysis.MaxConcurrentAnalyses {
		return nil, apperrors.NewConflictError("too many concurrent analyses")
	}

	id := uuid.New().String()
	an := &Analysis{
		ID:        id,
		Path:      path,
		CreatedAt: time.Now(),
		analyzer:  New(m.cfg.Analysis, m.logger.WithField("analysis_id", id)),
		cfg:       m.cfg.Analysis,
	}

	src := m.newSource(path)
	if !an.analyzer.Start(m.ctx, src) {
		return nil, apperrors.NewConflictError("analysis could not be started")
	}

	m.analyses[an.ID] = an
	m.logger.WithFields(map[string]interface{}{
		"analysis_id": an.ID,
		"path":        path,
	}).Info("Analysis created")
	return an, nil
}

func (m *Manager) activeLocked() int {
	active := 0
	for _, an := range m.analyses {
		if !an.analyzer.State().Phase.Terminal() {
			active++
		}
	}
	return active
}

// Active returns the number of analyses that have not reached a
// terminal phase.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

// Capacity returns the configured concurrent analysis limit.
func (m *Manager) Capacity() int {
	return m.cfg.Analysis.MaxConcurrentAnalyses
}

// Get returns the analysis with the given ID.
func (m *Manager) Get(id string) (*Analysis, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	an, ok := m.analyses[id]
	return an, ok
}

// List returns all analyses, newest first.
func (m *Manager) List() []*Analysis {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Analysis, 0, len(m.analyses))
	for _, an := range m.analyses {
		out = append(out, an)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel requests cancellation of the analysis with the given ID.
func (m *Manager) Cancel(id string) error {
	an, ok := m.Get(id)
	if !ok {
		return apperrors.NewNotFoundError("analysis")
	}
	an.analyzer.Cancel()
	return nil
}

// Delete cancels and removes the analysis with the given ID.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	an, ok := m.analyses[id]
	if !ok {
		return apperrors.NewNotFoundError("analysis")
	}
	an.analyzer.Reset()
	delete(m.analyses, id)
	m.logger.WithField("analysis_id", id).Info("Analysis deleted")
	return nil
}

// Shutdown cancels every in-flight analysis.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, an := range m.analyses {
		an.analyzer.Cancel()
	}
	m.logger.Info("Analysis manager shut down")
}

// State returns the current state snapshot of this analysis.
func (an *Analysis) State() State {
	return an.analyzer.State()
}

// Subscribe exposes the underlying state feed.
func (an *Analysis) Subscribe() <-chan State {
	return an.analyzer.Subscribe()
}

// Statistics returns the computed-once statistics snapshot. Only legal
// once the analysis is Finished.
func (an *Analysis) Statistics() (stats.Snapshot, error) {
	st := an.analyzer.State()
	if st.Phase != PhaseFinished {
		return stats.Snapshot{}, apperrors.NewConflictError("analysis has not finished")
	}

	an.statsOnce.Do(func() {
		an.snapshot = stats.Compute(st.Packets, st.Metadata.DurationSeconds)
	})
	return an.snapshot, nil
}

// Viewport computes the downsampled display series for a zoom/pan pair.
// Only legal once the analysis is Finished. Safe for concurrent callers:
// the packet list is immutable and the series computation is pure.
func (an *Analysis) Viewport(zoom, pan float64) ([]types.PacketRecord, error) {
	st := an.analyzer.State()
	if st.Phase != PhaseFinished {
		return nil, apperrors.NewConflictError("analysis has not finished")
	}

	start := time.Now()
	series := viewport.Series(st.Packets, zoom, pan, viewport.Config{
		RenderWidth:        an.cfg.RenderWidth,
		MinPixelsPerPacket: an.cfg.MinPixelsPerPacket,
	})
	metrics.DownsampleObserved(time.Since(start).Seconds(), len(series))
	return series, nil
}
