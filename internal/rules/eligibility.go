package rules

import "github.com/crewline/foreman/internal/model"

// Eligible reports whether a task can be worked on right now given the
// context. Unknown context fields never disqualify a task: a nil crew or
// material stock means "unknown", not "unavailable".
func Eligible(t model.Task, ctx model.WorkerContext) bool {
	if t.Stage == model.StageCompleted || t.Stage == model.StageBlocked {
		return false
	}
	if t.WeatherDependent && ctx.Weather == model.WeatherPoor {
		return false
	}
	if t.TradeRequired != "" && ctx.Crew != nil && !contains(ctx.Crew.Skills, t.TradeRequired) {
		return false
	}
	if len(t.MaterialsNeeded) > 0 && ctx.Materials != nil {
		for _, m := range t.MaterialsNeeded {
			if !contains(ctx.Materials.Available, m.Name) {
				return false
			}
		}
	}
	return true
}

// FirstEligible returns a copy of the first eligible task in the given
// order, or nil when none qualify. Callers pass an already prioritized list
// to get the recommended next task.
func FirstEligible(tasks []model.Task, ctx model.WorkerContext) *model.Task {
	for _, t := range tasks {
		if Eligible(t, ctx) {
			task := t
			return &task
		}
	}
	return nil
}

func contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}
