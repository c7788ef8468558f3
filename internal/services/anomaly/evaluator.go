package anomaly

import (
	"thermal-worker-go/internal/models"
)

// Evaluation is the outcome of checking one telemetry record
type Evaluation struct {
	Breach         bool
	HasReading     bool
	MaxTemperature float64
	Threshold      float64
	Record         *models.TelemetryRecord
}

// Evaluator compares the primary rule's maximum temperature to the alarm
// threshold.
type Evaluator struct {
	threshold float64
}

func NewEvaluator(threshold float64) *Evaluator {
	return &Evaluator{threshold: threshold}
}

func (e *Evaluator) Threshold() float64 {
	return e.threshold
}

// Evaluate reports a breach when the reading is at or above the threshold.
// A record without a reading is never a breach.
func (e *Evaluator) Evaluate(record *models.TelemetryRecord) Evaluation {
	eval := Evaluation{Threshold: e.threshold, Record: record}

	reading, ok := record.MaxTemperature()
	if !ok {
		return eval
	}

	eval.HasReading = true
	eval.MaxTemperature = reading
	eval.Breach = reading >= e.threshold
	return eval
}
