package models

import "time"

// PredictionRecord is one module call awaiting or carrying ground truth.
type PredictionRecord struct {
	ID         string     `json:"id"`
	Module     string     `json:"module"`
	Instrument string     `json:"instrument"`
	Vote       Vote       `json:"vote"`
	Confidence float64    `json:"confidence"`
	Regime     Regime     `json:"regime"`
	Timestamp  time.Time  `json:"timestamp"`
	Outcome    Outcome    `json:"outcome"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether ground truth has been recorded.
func (r PredictionRecord) Resolved() bool {
	return r.Outcome == OutcomeCorrect || r.Outcome == OutcomeIncorrect
}

// RollingWindow counts outcomes over the most recent resolved records.
type RollingWindow struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Accuracy is correct/total, or zero when empty.
func (w RollingWindow) Accuracy() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Correct) / float64(w.Total)
}

// ModulePerformance summarizes a module's track record, optionally for one regime.
type ModulePerformance struct {
	Module             string        `json:"module"`
	Regime             *Regime       `json:"regime,omitempty"`
	TotalPredictions   int           `json:"total_predictions"`
	CorrectPredictions int           `json:"correct_predictions"`
	Unresolved         int           `json:"unresolved"`
	RollingWindow      RollingWindow `json:"rolling_window"`
	WeightMultiplier   float64       `json:"weight_multiplier"`
	Form               Form          `json:"form"`
}
