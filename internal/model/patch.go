package model

import "time"

// TaskPatch is a partial task edit: only non-nil fields are considered set.
// Concurrent offline edits arrive as patches, and conflict resolution
// produces one.
type TaskPatch struct {
	Name               *string    `yaml:"name,omitempty" json:"name,omitempty"`
	Priority           *Priority  `yaml:"priority,omitempty" json:"priority,omitempty"`
	Stage              *Stage     `yaml:"stage,omitempty" json:"stage,omitempty"`
	DueDate            *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	WeatherDependent   *bool      `yaml:"weather_dependent,omitempty" json:"weather_dependent,omitempty"`
	InspectionRequired *bool      `yaml:"inspection_required,omitempty" json:"inspection_required,omitempty"`
	TradeRequired      *string    `yaml:"trade_required,omitempty" json:"trade_required,omitempty"`
	MaterialsNeeded    []Material `yaml:"materials_needed,omitempty" json:"materials_needed,omitempty"`
	EstimatedHours     *float64   `yaml:"estimated_hours,omitempty" json:"estimated_hours,omitempty"`
	AssignedTo         *string    `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	SafetyNotes        *string    `yaml:"safety_notes,omitempty" json:"safety_notes,omitempty"`
	CompletionNotes    *string    `yaml:"completion_notes,omitempty" json:"completion_notes,omitempty"`
}

// IsZero reports whether the patch sets no fields.
func (p TaskPatch) IsZero() bool {
	return p.Name == nil &&
		p.Priority == nil &&
		p.Stage == nil &&
		p.DueDate == nil &&
		p.WeatherDependent == nil &&
		p.InspectionRequired == nil &&
		p.TradeRequired == nil &&
		p.MaterialsNeeded == nil &&
		p.EstimatedHours == nil &&
		p.AssignedTo == nil &&
		p.SafetyNotes == nil &&
		p.CompletionNotes == nil
}

// Apply returns a copy of t with every set field of the patch overlaid.
// Neither t nor the patch is mutated.
func (p TaskPatch) Apply(t Task) Task {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Stage != nil {
		t.Stage = *p.Stage
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.WeatherDependent != nil {
		t.WeatherDependent = *p.WeatherDependent
	}
	if p.InspectionRequired != nil {
		t.InspectionRequired = *p.InspectionRequired
	}
	if p.TradeRequired != nil {
		t.TradeRequired = *p.TradeRequired
	}
	if p.MaterialsNeeded != nil {
		t.MaterialsNeeded = append([]Material(nil), p.MaterialsNeeded...)
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.SafetyNotes != nil {
		t.SafetyNotes = *p.SafetyNotes
	}
	if p.CompletionNotes != nil {
		t.CompletionNotes = *p.CompletionNotes
	}
	return t
}
