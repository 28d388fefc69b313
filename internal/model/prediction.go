package model

import "time"

// TaskPrediction is the lifecycle forecast for a single task. It is a pure
// function of the task it was computed from and carries no persisted
// identity.
type TaskPrediction struct {
	TaskID               string    `yaml:"task_id" json:"task_id"`
	PredictedCompletion  time.Time `yaml:"predicted_completion" json:"predicted_completion"`
	RiskFactors          []string  `yaml:"risk_factors" json:"risk_factors"`
	RecommendedActions   []string  `yaml:"recommended_actions" json:"recommended_actions"`
	ConfidenceScore      float64   `yaml:"confidence_score" json:"confidence_score"`
	BottleneckLikelihood float64   `yaml:"bottleneck_likelihood" json:"bottleneck_likelihood"`
}
