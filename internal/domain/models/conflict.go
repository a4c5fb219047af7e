package models

// InvolvedModule is a module that takes part in a detected conflict.
type InvolvedModule struct {
	Module     string  `json:"module"`
	Vote       Vote    `json:"vote"`
	Confidence float64 `json:"confidence"`
}

// ConflictAnalysis describes how module opinions disagree.
type ConflictAnalysis struct {
	NoData          bool             `json:"no_data"`
	Severity        Severity         `json:"severity"`
	ConflictType    ConflictType     `json:"conflict_type"`
	VarianceScore   int              `json:"variance_score"`
	Opportunity     OpportunityType  `json:"opportunity"`
	InvolvedModules []InvolvedModule `json:"involved_modules"`
	ActionHint      string           `json:"action_hint"`
}
