// Package budget tracks cumulative run spend against a USD ceiling.
package budget

import (
	"log"
	"sync"
)

// State is a point-in-time snapshot of the ledger.
type State struct {
	SpentUSD float64
	LimitUSD float64
	Warned   bool
	Flagged  int // negative-cost additions clamped to zero
}

// Ledger accumulates cost across concurrent callers. A limit of zero or less
// disables the ceiling, so the zero value is usable but never exceeded.
type Ledger struct {
	mu       sync.Mutex
	spent    float64
	limit    float64
	warnFrac float64
	warned   bool
	flagged  int
}

// New creates a ledger with the given ceiling. warnFraction is the share of
// the ceiling at which a single warning is logged (0 disables warning).
func New(limitUSD, warnFraction float64) *Ledger {
	return &Ledger{limit: limitUSD, warnFrac: warnFraction}
}

// Add records the cost of a completed call and returns the resulting state.
// Negative costs are clamped to zero and counted in State.Flagged.
func (l *Ledger) Add(costUSD float64) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if costUSD < 0 {
		log.Printf("warning: negative cost %.6f clamped to zero", costUSD)
		costUSD = 0
		l.flagged++
	}
	l.spent += costUSD
	if !l.warned && l.limit > 0 && l.warnFrac > 0 && l.spent > l.limit*l.warnFrac {
		l.warned = true
		log.Printf("warning: spend $%.4f crossed %.0f%% of budget $%.2f", l.spent, l.warnFrac*100, l.limit)
	}
	return l.stateLocked()
}

// Exceeded reports whether cumulative spend is strictly over the ceiling.
// It gates admission of new work; it does not stop in-flight calls.
func (l *Ledger) Exceeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit > 0 && l.spent > l.limit
}

// Snapshot returns the current state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Ledger) stateLocked() State {
	return State{SpentUSD: l.spent, LimitUSD: l.limit, Warned: l.warned, Flagged: l.flagged}
}
