package model

// ConflictResolution is the outcome of merging two concurrent partial edits
// against one base task. ResolvedTask is a patch relative to the original
// task; applying it yields the merged record. Fields whose resolution needs
// a human decision are left out of the patch and flagged via
// RequiresManualReview.
type ConflictResolution struct {
	ResolvedTask         TaskPatch `yaml:"resolved_task" json:"resolved_task"`
	Reasoning            string    `yaml:"reasoning" json:"reasoning"`
	Confidence           float64   `yaml:"confidence" json:"confidence"`
	RequiresManualReview bool      `yaml:"requires_manual_review" json:"requires_manual_review"`
}
