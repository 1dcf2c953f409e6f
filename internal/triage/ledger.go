// Package triage tracks which match results of the active submission have
// been reported, and derives the visible result set from the full one.
package triage

import (
	"log/slog"
	"sync"

	"github.com/deeptracer/deeptracer-go/internal/detection"
	"github.com/deeptracer/deeptracer-go/internal/logging"
)

// Ledger owns the reported-id set for one active result set. Reporting is
// idempotent and monotonic: ids are only ever added, until Reset replaces the
// result set entirely. Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	reported map[int]struct{}
	logger   *slog.Logger
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		reported: make(map[int]struct{}),
		logger:   logging.ForService("triage"),
	}
}

// Report marks the id as reported. Reporting an already-reported id is a
// no-op; the observable state is identical either way.
func (l *Ledger) Report(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.reported[id]; ok {
		return
	}
	l.reported[id] = struct{}{}
	l.logger.Debug("match reported", "id", id, "reported_total", len(l.reported))
}

// ReportAll marks every id in currentVisible that is not yet reported and
// returns the count actually newly added. The returned count is what user
// confirmation messages must reflect; it never overstates.
func (l *Ledger) ReportAll(currentVisible []detection.MatchResult) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	added := 0
	for i := range currentVisible {
		id := currentVisible[i].ID
		if _, ok := l.reported[id]; !ok {
			l.reported[id] = struct{}{}
			added++
		}
	}
	if added > 0 {
		l.logger.Debug("bulk report", "newly_reported", added, "reported_total", len(l.reported))
	}
	return added
}

// Visible returns all matches whose id is not reported, preserving the
// original relative order.
func (l *Ledger) Visible(all []detection.MatchResult) []detection.MatchResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	visible := make([]detection.MatchResult, 0, len(all))
	for i := range all {
		if _, ok := l.reported[all[i].ID]; !ok {
			visible = append(visible, all[i])
		}
	}
	return visible
}

// Reported reports whether the id has been reported.
func (l *Ledger) Reported(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.reported[id]
	return ok
}

// Len returns the number of reported ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reported)
}

// Reset clears the reported set. Called exactly when a new submission's
// outcome replaces the displayed result set.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reported = make(map[int]struct{})
}
