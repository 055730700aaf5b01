package sim

import (
	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/dynamo"
)

// ProgressLogger logs every n-th slice at debug level.
type ProgressLogger struct {
	log   *zap.Logger
	every int
}

func NewProgressLogger(log *zap.Logger, every int) *ProgressLogger {
	if every < 1 {
		every = 1
	}
	return &ProgressLogger{log: log, every: every}
}

func (p *ProgressLogger) OnStep(step int, t float64, y dynamo.State) {
	if step%p.every == 0 {
		p.log.Debug("step", zap.Int("step", step), zap.Float64("t", t))
	}
}

// Recorder keeps the times it was notified at. It is mostly useful in
// tests.
type Recorder struct {
	Steps []int
	Times []float64
}

func (r *Recorder) OnStep(step int, t float64, _ dynamo.State) {
	r.Steps = append(r.Steps, step)
	r.Times = append(r.Times, t)
}
