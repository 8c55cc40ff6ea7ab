package malfunction

import "sync"

// workState tracks one repair category of a live malfunction.
type workState struct {
	required  float64
	completed float64
	capacity  int
	repairers map[string]float64 // repairer id → cumulative work time
}

// Instance is a live occurrence of a malfunction. It is created by a
// Manager, mutated by repair tasks calling AddRepairWork, and discarded by
// the manager once fixed. Instances synchronize internally so report code
// can inspect them while a pulse is in progress.
type Instance struct {
	incident  int64
	tmpl      *Template
	severity  int
	raisedSol int

	mu    sync.RWMutex
	work  map[WorkType]*workState
	parts map[string]int
}

func newInstance(incident int64, tmpl *Template, severity int, parts map[string]int, sol int) *Instance {
	work := make(map[WorkType]*workState, len(tmpl.RepairWork))
	for wt, required := range tmpl.RepairWork {
		if required <= 0 {
			continue
		}
		work[wt] = &workState{
			required:  required,
			capacity:  tmpl.capacity(wt),
			repairers: make(map[string]float64),
		}
	}
	return &Instance{
		incident:  incident,
		tmpl:      tmpl,
		severity:  severity,
		raisedSol: sol,
		work:      work,
		parts:     parts,
	}
}

// IncidentID returns the globally unique incident number.
func (in *Instance) IncidentID() int64 { return in.incident }

// Name returns the template name.
func (in *Instance) Name() string { return in.tmpl.Name }

// Severity returns the severity rolled at creation, 1-100.
func (in *Instance) Severity() int { return in.severity }

// RaisedSol returns the sol the malfunction occurred.
func (in *Instance) RaisedSol() int { return in.raisedSol }

// AddRepairWork credits repair time to a work category. It is a silent
// no-op when the category needs no work, is already complete, or has no
// open repairer slot for a new repairer. Completed work is clamped at the
// required work, and the repairer is credited with the time actually
// applied.
func (in *Instance) AddRepairWork(w WorkType, time float64, repairerID string) {
	if time <= 0 {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	ws, ok := in.work[w]
	if !ok || ws.completed >= ws.required {
		return
	}
	if _, assigned := ws.repairers[repairerID]; !assigned && len(ws.repairers) >= ws.capacity {
		return
	}

	applied := time
	if ws.completed+applied > ws.required {
		applied = ws.required - ws.completed
	}
	ws.completed += applied
	ws.repairers[repairerID] += applied
}

// NeedsWork reports whether the category requires work that is not yet
// complete.
func (in *Instance) NeedsWork(w WorkType) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	ws, ok := in.work[w]
	return ok && ws.completed < ws.required
}

// NumRepairerSlotsEmpty returns how many more distinct repairers the
// category can take.
func (in *Instance) NumRepairerSlotsEmpty(w WorkType) int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	ws, ok := in.work[w]
	if !ok {
		return 0
	}
	if open := ws.capacity - len(ws.repairers); open > 0 {
		return open
	}
	return 0
}

// WorkRequired returns the work time the category needs in total.
func (in *Instance) WorkRequired(w WorkType) float64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if ws, ok := in.work[w]; ok {
		return ws.required
	}
	return 0
}

// WorkCompleted returns the work time credited to the category so far.
func (in *Instance) WorkCompleted(w WorkType) float64 {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if ws, ok := in.work[w]; ok {
		return ws.completed
	}
	return 0
}

// IsFixed reports whether every work category is complete.
func (in *Instance) IsFixed() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	for _, ws := range in.work {
		if ws.completed < ws.required {
			return false
		}
	}
	return true
}

// PercentageFixed returns aggregate repair completion, 0-100, weighting
// each category by its share of the total required work. A malfunction
// with no work requirements counts as fixed.
func (in *Instance) PercentageFixed() float64 {
	in.mu.RLock()
	defer in.mu.RUnlock()

	var total, done float64
	for _, ws := range in.work {
		total += ws.required
		done += ws.completed
	}
	if total <= 0 {
		return 100
	}
	return done / total * 100
}

// MostProductiveRepairer returns the id with the most cumulative work time
// across all categories, or "" if nobody has worked the malfunction.
func (in *Instance) MostProductiveRepairer() string {
	in.mu.RLock()
	defer in.mu.RUnlock()

	totals := make(map[string]float64)
	for _, ws := range in.work {
		for id, t := range ws.repairers {
			totals[id] += t
		}
	}

	best := ""
	bestTime := 0.0
	for id, t := range totals {
		if t > bestTime {
			best, bestTime = id, t
		}
	}
	return best
}

// RepairParts returns a copy of the parts this repair may consume.
func (in *Instance) RepairParts() map[string]int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make(map[string]int, len(in.parts))
	for name, qty := range in.parts {
		out[name] = qty
	}
	return out
}

// ResourceEffects returns the template's resource drain table.
func (in *Instance) ResourceEffects() map[string]float64 {
	return in.tmpl.ResourceEffects
}

// LifeSupportEffects returns the template's life-support effect table.
func (in *Instance) LifeSupportEffects() map[string]float64 {
	return in.tmpl.LifeSupportEffects
}
