package health

import (
	"context"
	"fmt"
)

// AnalysisCapacity reports how loaded the analysis manager is.
type AnalysisCapacity interface {
	Active() int
	Capacity() int
}

// AnalysisChecker reports degraded when every analysis slot is busy.
// New analyses are rejected while saturated, so readiness probes
// should surface it.
type AnalysisChecker struct {
	manager AnalysisCapacity
}

// NewAnalysisChecker creates a checker over the analysis manager.
func NewAnalysisChecker(manager AnalysisCapacity) *AnalysisChecker {
	return &AnalysisChecker{manager: manager}
}

// Name returns the name of the checker.
func (a *AnalysisChecker) Name() string {
	return "analysis"
}

// Check reports saturation of the analysis manager.
func (a *AnalysisChecker) Check(ctx context.Context) error {
	active := a.manager.Active()
	capacity := a.manager.Capacity()
	if capacity > 0 && active >= capacity {
		return fmt.Errorf("%w: all %d analysis slots busy", ErrDegraded, capacity)
	}
	return nil
}
