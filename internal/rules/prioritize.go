// Package rules implements the deterministic, rule-based decision path:
// prioritization, eligibility filtering, lifecycle prediction, and conflict
// resolution. Everything here is pure; no I/O, no timers, no clock reads.
// The orchestrating engine uses this package as its guaranteed-available
// fallback.
package rules

import (
	"sort"

	"github.com/crewline/foreman/internal/model"
)

// Prioritize returns the tasks reordered by the rule chain. The sort is
// stable: ties keep their input order. The input slice is never mutated and
// the output is always a permutation of the input.
func Prioritize(tasks []model.Task, ctx model.WorkerContext) []model.Task {
	ordered := make([]model.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return compare(ordered[i], ordered[j], ctx) < 0
	})
	return ordered
}

// compare applies the ordered tie-break chain: the first rule that
// distinguishes the two tasks decides. Negative means a sorts before b.
func compare(a, b model.Task, ctx model.WorkerContext) int {
	// Rule 1: critical tasks take absolute precedence, independent of context.
	aCritical := a.Priority == model.PriorityCritical
	bCritical := b.Priority == model.PriorityCritical
	if aCritical != bCritical {
		if aCritical {
			return -1
		}
		return 1
	}

	// Rule 2: seize good-weather windows.
	if ctx.Weather == model.WeatherGood && a.WeatherDependent != b.WeatherDependent {
		if a.WeatherDependent {
			return -1
		}
		return 1
	}

	// Rule 3: inspections are a time-sensitive external dependency.
	if a.InspectionRequired != b.InspectionRequired {
		if a.InspectionRequired {
			return -1
		}
		return 1
	}

	// Rule 4: priority rank, higher first.
	if aRank, bRank := a.Priority.Rank(), b.Priority.Rank(); aRank != bRank {
		return bRank - aRank
	}

	// Rule 5: earlier due date first; a task with a due date sorts before one
	// without; two dateless tasks fall through.
	switch {
	case a.DueDate != nil && b.DueDate != nil:
		if a.DueDate.Before(*b.DueDate) {
			return -1
		}
		if b.DueDate.Before(*a.DueDate) {
			return 1
		}
	case a.DueDate != nil:
		return -1
	case b.DueDate != nil:
		return 1
	}

	// Rule 6: stage readiness, higher first.
	if aRank, bRank := a.Stage.ReadinessRank(), b.Stage.ReadinessRank(); aRank != bRank {
		return bRank - aRank
	}

	return 0
}
