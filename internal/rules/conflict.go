package rules

import (
	"strings"

	"github.com/crewline/foreman/internal/model"
)

// Reasoning fragments appended by ResolveConflict, in rule order.
const (
	reasonSafetyPreserved = "Safety notes preserved."
	reasonStageAdvanced   = "Used most advanced stage."
	reasonStageReview     = "Stage conflict requires review."
	reasonPriorityReview  = "Priority conflict requires review."
	reasonNoConflicts     = "No conflicts detected"
)

// ResolveConflict deterministically merges two concurrent partial edits
// against one base record. The returned patch is relative to original;
// fields whose resolution needs a human decision are left out of the patch
// and flagged through RequiresManualReview, with the original value
// retained.
func ResolveConflict(local, remote model.TaskPatch, original model.Task) model.ConflictResolution {
	var (
		patch     model.TaskPatch
		fragments []string
		review    bool
	)

	// Safety notes are never silently dropped; local wins when both sides
	// set them.
	if local.SafetyNotes != nil || remote.SafetyNotes != nil {
		if local.SafetyNotes != nil {
			patch.SafetyNotes = local.SafetyNotes
		} else {
			patch.SafetyNotes = remote.SafetyNotes
		}
		fragments = append(fragments, reasonSafetyPreserved)
	}

	// Stage merges must never regress visible progress. An out-of-progression
	// stage (blocked, weather_hold, ...) wins only unopposed.
	switch {
	case local.Stage != nil && remote.Stage != nil:
		stage, fragment, needsReview := mergeStages(*local.Stage, *remote.Stage)
		if needsReview {
			review = true
		} else {
			patch.Stage = &stage
		}
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	case local.Stage != nil:
		patch.Stage = local.Stage
	case remote.Stage != nil:
		patch.Stage = remote.Stage
	}

	// Conflicting priorities are not auto-resolved.
	switch {
	case local.Priority != nil && remote.Priority != nil && *local.Priority != *remote.Priority:
		review = true
		fragments = append(fragments, reasonPriorityReview)
	case local.Priority != nil:
		patch.Priority = local.Priority
	case remote.Priority != nil:
		patch.Priority = remote.Priority
	}

	mergeRemaining(&patch, local, remote)

	confidence := 0.8
	if review {
		confidence = 0.5
	}
	reasoning := reasonNoConflicts
	if len(fragments) > 0 {
		reasoning = strings.Join(fragments, " ")
	}

	return model.ConflictResolution{
		ResolvedTask:         patch,
		Reasoning:            reasoning,
		Confidence:           confidence,
		RequiresManualReview: review,
	}
}

// mergeStages resolves two stage values that were both set. The returned
// fragment is empty when the values agreed and no resolution happened.
func mergeStages(local, remote model.Stage) (stage model.Stage, fragment string, needsReview bool) {
	if local == remote {
		return local, "", false
	}

	localIdx, localOK := local.ProgressionIndex()
	remoteIdx, remoteOK := remote.ProgressionIndex()

	switch {
	case localOK && remoteOK:
		if remoteIdx > localIdx {
			return remote, reasonStageAdvanced, false
		}
		return local, reasonStageAdvanced, false
	case localOK:
		return local, reasonStageAdvanced, false
	case remoteOK:
		return remote, reasonStageAdvanced, false
	default:
		// Two different out-of-progression stages have no defined order.
		return "", reasonStageReview, true
	}
}

// mergeRemaining merges the fields with no special conflict rule: one-sided
// edits are taken as-is, and the local side is preferred when both set a
// field.
func mergeRemaining(patch *model.TaskPatch, local, remote model.TaskPatch) {
	patch.Name = local.Name
	if patch.Name == nil {
		patch.Name = remote.Name
	}
	patch.DueDate = local.DueDate
	if patch.DueDate == nil {
		patch.DueDate = remote.DueDate
	}
	patch.WeatherDependent = local.WeatherDependent
	if patch.WeatherDependent == nil {
		patch.WeatherDependent = remote.WeatherDependent
	}
	patch.InspectionRequired = local.InspectionRequired
	if patch.InspectionRequired == nil {
		patch.InspectionRequired = remote.InspectionRequired
	}
	patch.TradeRequired = local.TradeRequired
	if patch.TradeRequired == nil {
		patch.TradeRequired = remote.TradeRequired
	}
	patch.MaterialsNeeded = local.MaterialsNeeded
	if patch.MaterialsNeeded == nil {
		patch.MaterialsNeeded = remote.MaterialsNeeded
	}
	patch.EstimatedHours = local.EstimatedHours
	if patch.EstimatedHours == nil {
		patch.EstimatedHours = remote.EstimatedHours
	}
	patch.AssignedTo = local.AssignedTo
	if patch.AssignedTo == nil {
		patch.AssignedTo = remote.AssignedTo
	}
	patch.CompletionNotes = local.CompletionNotes
	if patch.CompletionNotes == nil {
		patch.CompletionNotes = remote.CompletionNotes
	}
}
