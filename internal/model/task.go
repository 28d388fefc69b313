// Package model defines the task records, worker context, and decision
// value objects the engine operates on.
package model

import (
	"fmt"
	"time"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Stage string

const (
	StageNotStarted Stage = "not_started"
	StageInProgress Stage = "in_progress"
	StageCompleted  Stage = "completed"
	StageBlocked    Stage = "blocked"

	// Construction-aware stage variants. They take part in prioritization
	// (default readiness rank) but not in the conflict progression.
	StageMaterialsPending   Stage = "materials_pending"
	StageCrewAssigned       Stage = "crew_assigned"
	StageInspectionRequired Stage = "inspection_required"
	StageWeatherHold        Stage = "weather_hold"
)

type Weather string

const (
	WeatherGood    Weather = "good"
	WeatherPoor    Weather = "poor"
	WeatherExtreme Weather = "extreme"
)

type SafetyLevel string

const (
	SafetyNormal   SafetyLevel = "normal"
	SafetyElevated SafetyLevel = "elevated"
	SafetyCritical SafetyLevel = "critical"
)

var priorityRanks = map[Priority]int{
	PriorityCritical: 4,
	PriorityHigh:     3,
	PriorityMedium:   2,
	PriorityLow:      1,
}

// Rank returns the ordering weight of a priority. Unknown priorities rank 0,
// below low.
func (p Priority) Rank() int {
	return priorityRanks[p]
}

var stageReadinessRanks = map[Stage]int{
	StageInProgress: 5,
	StageNotStarted: 4,
	StageBlocked:    2,
	StageCompleted:  1,
}

// ReadinessRank returns the stage ordering weight used as the final
// prioritization tie-break. Stages outside the four base stages rank 3.
func (s Stage) ReadinessRank() int {
	if r, ok := stageReadinessRanks[s]; ok {
		return r
	}
	return 3
}

var stageProgression = map[Stage]int{
	StageNotStarted: 0,
	StageInProgress: 1,
	StageCompleted:  2,
}

// ProgressionIndex returns the position of a stage in the canonical forward
// progression not_started → in_progress → completed. The second return is
// false for out-of-progression stages such as blocked or weather_hold.
func (s Stage) ProgressionIndex() (int, bool) {
	idx, ok := stageProgression[s]
	return idx, ok
}

// Material is one named material reference a task depends on.
type Material struct {
	Name string `yaml:"name" json:"name"`
}

// Task is one unit of field work. The engine only reads tasks; it never
// creates, deletes, or mutates them. Tasks arrive as YAML and leave inside
// decisions, which the CLI can also render as JSON.
type Task struct {
	ID                 string     `yaml:"id" json:"id"`
	Name               string     `yaml:"name,omitempty" json:"name,omitempty"`
	Priority           Priority   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Stage              Stage      `yaml:"stage,omitempty" json:"stage,omitempty"`
	DueDate            *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	WeatherDependent   bool       `yaml:"weather_dependent,omitempty" json:"weather_dependent,omitempty"`
	InspectionRequired bool       `yaml:"inspection_required,omitempty" json:"inspection_required,omitempty"`
	TradeRequired      string     `yaml:"trade_required,omitempty" json:"trade_required,omitempty"`
	MaterialsNeeded    []Material `yaml:"materials_needed,omitempty" json:"materials_needed,omitempty"`
	EstimatedHours     float64    `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
	AssignedTo         string     `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	SafetyNotes        string     `yaml:"safety_notes,omitempty" json:"safety_notes,omitempty"`
	CompletionNotes    string     `yaml:"completion_notes,omitempty" json:"completion_notes,omitempty"`
}

// Validate checks the fields the engine requires. Unknown priority and stage
// strings are legal; the rules assign them default ranks.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task has empty id")
	}
	if t.EstimatedHours < 0 {
		return fmt.Errorf("task %s: estimated_hours must not be negative", t.ID)
	}
	return nil
}

// Crew describes the crew on site. A nil Crew on WorkerContext means the
// crew situation is unknown.
type Crew struct {
	Available bool     `yaml:"available"`
	Skills    []string `yaml:"skills,omitempty"`
}

// MaterialStock describes material availability on site. A nil MaterialStock
// on WorkerContext means material availability is unknown.
type MaterialStock struct {
	Available []string `yaml:"available,omitempty"`
	Pending   []string `yaml:"pending,omitempty"`
}

// WorkerContext is the ambient situational input supplied by the caller per
// call. It is never persisted by the engine. Absent fields mean "unknown"
// and must degrade gracefully: unknown weather is non-blocking, a nil crew
// or material stock never disqualifies a task.
type WorkerContext struct {
	Weather            Weather        `yaml:"weather,omitempty"`
	Crew               *Crew          `yaml:"crew,omitempty"`
	Materials          *MaterialStock `yaml:"materials,omitempty"`
	SafetyLevel        SafetyLevel    `yaml:"safety_level,omitempty"`
	TimeOfDay          *int           `yaml:"time_of_day,omitempty"`
	EquipmentAvailable []string       `yaml:"equipment_available,omitempty"`
}
