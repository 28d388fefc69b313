package rules

import (
	"math"
	"time"

	"github.com/crewline/foreman/internal/model"
)

// Risk factor labels, reported in this fixed order: weather, then materials,
// then staffing.
const (
	RiskWeather   = "Weather dependent"
	RiskMaterials = "Material dependencies"
	RiskStaffing  = "No assigned worker"
)

const defaultEstimatedHours = 8

// PredictLifecycle forecasts the completion date and risk profile of a task
// relative to now.
func PredictLifecycle(t model.Task, now time.Time) model.TaskPrediction {
	hours := t.EstimatedHours
	if hours <= 0 {
		hours = defaultEstimatedHours
	}
	days := int(math.Ceil(hours / 8))

	if t.WeatherDependent {
		days++
	}
	if t.InspectionRequired {
		days += 2
	}
	// Critical work gets expedited, never below one day total.
	if t.Priority == model.PriorityCritical {
		days--
		if days < 1 {
			days = 1
		}
	}

	risks := make([]string, 0, 3)
	if t.WeatherDependent {
		risks = append(risks, RiskWeather)
	}
	if len(t.MaterialsNeeded) > 0 {
		risks = append(risks, RiskMaterials)
	}
	if t.AssignedTo == "" {
		risks = append(risks, RiskStaffing)
	}

	actions := make([]string, 0, 2)
	if len(risks) > 0 {
		actions = append(actions, "Review dependencies", "Assign resources")
	}

	confidence := 1 - 0.2*float64(len(risks))
	if confidence < 0.3 {
		confidence = 0.3
	}

	return model.TaskPrediction{
		TaskID:               t.ID,
		PredictedCompletion:  now.AddDate(0, 0, days),
		RiskFactors:          risks,
		RecommendedActions:   actions,
		ConfidenceScore:      confidence,
		BottleneckLikelihood: 0.25 * float64(len(risks)),
	}
}
