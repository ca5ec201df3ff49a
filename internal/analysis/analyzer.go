// Package analysis drives the asynchronous ingestion-and-progress state
// machine. One background worker runs per active analysis; all state
// transitions go through a single guarded cell that observers read as
// copied snapshots. The ordering, stats and viewport packages it feeds
// are pure and need no coordination.
package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/packetscope/packetscope/internal/analysis/ordering"
	"github.com/packetscope/packetscope/internal/analysis/source"
	"github.com/packetscope/packetscope/internal/analysis/types"
	"github.com/packetscope/packetscope/internal/config"
	apperrors "github.com/packetscope/packetscope/internal/errors"
	"github.com/packetscope/packetscope/internal/logger"
	"github.com/packetscope/packetscope/internal/metrics"
)

// Analyzer owns one analysis state machine. Start/Cancel/Reset are safe
// for concurrent use; at most one ingestion run is active at a time.
type Analyzer struct {
	cfg    config.AnalysisConfig
	logger logger.Logger

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	runID  uint64

	observers []chan State
}

// New creates an idle Analyzer.
func New(cfg config.AnalysisConfig, log logger.Logger) *Analyzer {
	if cfg.PacketBatchSize <= 0 {
		cfg.PacketBatchSize = 64
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Analyzer{
		cfg:    cfg,
		logger: log,
		state:  State{Phase: PhaseIdle},
	}
}

// State returns a copy of the current state.
func (a *Analyzer) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Subscribe returns a channel carrying state snapshots. The channel has
// a one-slot buffer and delivery is latest-wins: a slow observer misses
// intermediate progress updates, never the terminal one.
func (a *Analyzer) Subscribe() <-chan State {
	ch := make(chan State, 1)
	a.mu.Lock()
	a.observers = append(a.observers, ch)
	ch <- a.state
	a.mu.Unlock()
	return ch
}

// Start begins a new analysis run. Legal only from Idle, Failed or
// Finished; otherwise it is a no-op and returns false. Any previously
// held run context is cancelled first.
func (a *Analyzer) Start(ctx context.Context, src source.Source) bool {
	a.mu.Lock()

	switch a.state.Phase {
	case PhaseIdle, PhaseFailed, PhaseFinished:
	default:
		a.mu.Unlock()
		a.logger.WithField("phase", a.state.Phase.String()).Warn("Start ignored: analysis already in flight")
		return false
	}

	if a.cancel != nil {
		a.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.runID++
	runID := a.runID
	a.setStateLocked(State{Phase: PhaseLoadingMetadata})
	a.mu.Unlock()

	metrics.AnalysisStarted()
	a.logger.Info("Analysis started")

	go a.run(runCtx, src, runID)
	return true
}

// Cancel signals cancellation to the in-flight ingestion. Cooperative,
// not preemptive: the run observes it and terminates in Failed with the
// cancellation kind. No-op in terminal states.
func (a *Analyzer) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Phase.Terminal() {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.logger.Info("Analysis cancellation requested")
	}
}

// Reset cancels any in-flight run and discards all held packets and
// metadata, returning to Idle.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	// Invalidate in-flight publishes from the cancelled run.
	a.runID++
	a.setStateLocked(State{Phase: PhaseIdle})
	a.logger.Debug("Analysis reset")
}

// run is the background worker: one per Start call.
func (a *Analyzer) run(ctx context.Context, src source.Source, runID uint64) {
	defer func() {
		if err := src.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close ingestion source")
		}
	}()

	// Every run settles the started/active accounting exactly once on
	// exit, including runs whose publishes a Reset or restart has
	// invalidated.
	started := time.Now()
	outcome := "superseded"
	defer func() {
		metrics.AnalysisFinished(outcome, time.Since(started).Seconds())
	}()

	meta, err := src.Open(ctx)
	if err != nil {
		outcome = a.fail(runID, a.classify(ctx, err))
		return
	}
	if !meta.Usable() {
		outcome = a.fail(runID, apperrors.NewMetadataInvalidError("duration is non-finite or not positive"))
		return
	}

	if !a.publish(runID, State{Phase: PhaseAnalyzing, Progress: 0}) {
		return
	}

	limiter := rate.NewLimiter(rate.Every(a.cfg.ProgressInterval), 1)
	estimate := meta.FrameCountEstimate

	var records []types.PacketRecord
	var lastProgress float64

	for {
		pkt, ok, err := src.Next(ctx)
		if err != nil {
			outcome = a.fail(runID, a.classify(ctx, err))
			return
		}
		if !ok {
			break
		}

		// Cancellation is checked after consuming each unit, not only at
		// loop entry, so a cancel racing the final progress update still
		// takes effect.
		if ctx.Err() != nil {
			outcome = a.fail(runID, apperrors.NewCancelledError())
			return
		}

		records = append(records, types.NewPacketRecord(len(records), pkt.Timestamp, pkt.SizeBytes, pkt.IsKeyframe))

		if len(records)%a.cfg.PacketBatchSize == 0 && estimate > 0 {
			progress := float64(len(records)) / float64(estimate)
			if progress > 0.99 {
				progress = 0.99
			}
			if progress > lastProgress && limiter.Allow() {
				lastProgress = progress
				if !a.publish(runID, State{Phase: PhaseAnalyzing, Progress: progress}) {
					return
				}
			}
		}
	}

	if ctx.Err() != nil {
		outcome = a.fail(runID, apperrors.NewCancelledError())
		return
	}

	// Terminal 100% bypasses the throttle.
	if !a.publish(runID, State{Phase: PhaseAnalyzing, Progress: 1}) {
		return
	}

	ordered := ordering.Reorder(records)

	var invalid int
	for _, p := range ordered {
		if !p.Valid() {
			invalid++
		}
	}
	metrics.PacketsIngested(len(ordered))
	metrics.InvalidPackets(invalid)

	if a.publish(runID, State{
		Phase:    PhaseFinished,
		Progress: 1,
		Packets:  ordered,
		Metadata: meta,
	}) {
		outcome = "finished"
		a.logger.WithFields(map[string]interface{}{
			"packets":         len(ordered),
			"invalid_packets": invalid,
			"duration_s":      meta.DurationSeconds,
		}).Info("Analysis finished")
	}
}

// classify maps run errors onto the analysis error taxonomy. Context
// cancellation always wins over whatever the source reported.
func (a *Analyzer) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return apperrors.NewCancelledError()
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.WrapIngestionError(err, "ingestion source failed mid-stream")
}

// fail publishes the Failed state and returns the outcome label for
// the run's metrics accounting. A superseded run keeps the superseded
// label since its failure was never observable.
func (a *Analyzer) fail(runID uint64, err error) string {
	if !a.publish(runID, State{Phase: PhaseFailed, Err: err}) {
		return "superseded"
	}

	if apperrors.IsCancelled(err) {
		a.logger.Info("Analysis cancelled")
		return "cancelled"
	}
	a.logger.WithError(err).Warn("Analysis failed")
	return "failed"
}

// publish installs a new state snapshot if the run is still current.
// Returns false when a newer run or a Reset has superseded this one.
func (a *Analyzer) publish(runID uint64, st State) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runID != runID {
		return false
	}
	if st.Phase.Terminal() {
		a.cancel = nil
	}
	a.setStateLocked(st)
	return true
}

// setStateLocked stores the snapshot and fans it out. Sends are
// non-blocking with latest-wins replacement so a stalled observer can
// never stall the state machine.
func (a *Analyzer) setStateLocked(st State) {
	a.state = st
	for _, ch := range a.observers {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
