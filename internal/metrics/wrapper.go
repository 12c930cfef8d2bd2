package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
	Add(float64)
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the hooks the evaluation engine calls.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) RowsScored() MetricsCounter {
	return &CounterWrapper{w.m.RowsScored}
}

func (w *MetricsWrapper) TreesEvaluated() MetricsCounter {
	return &CounterWrapper{w.m.TreesEvaluated}
}

func (w *MetricsWrapper) QueryGroups() MetricsCounter {
	return &CounterWrapper{w.m.QueryGroups}
}

func (w *MetricsWrapper) ParseErrors() MetricsCounter {
	return &CounterWrapper{w.m.ParseErrors}
}

func (w *MetricsWrapper) ModelTrees() MetricsGauge {
	return &GaugeWrapper{w.m.ModelTrees}
}

func (w *MetricsWrapper) ModelFeatures() MetricsGauge {
	return &GaugeWrapper{w.m.ModelFeatures}
}

func (w *MetricsWrapper) RowLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.RowLatency}
}

func (w *MetricsWrapper) QueryGroupSize() MetricsHistogram {
	return &HistogramWrapper{w.m.QueryGroupSize}
}

// ModelLoaded records the size of the ensemble a run evaluates.
func (w *MetricsWrapper) ModelLoaded(trees, features int) {
	w.ModelTrees().Set(float64(trees))
	w.ModelFeatures().Set(float64(features))
}

// RowScored records one scored row that walked trees trees.
func (w *MetricsWrapper) RowScored(trees int, elapsed time.Duration) {
	w.RowsScored().Inc()
	w.TreesEvaluated().Add(float64(trees))
	w.RowLatency().Observe(elapsed.Seconds())
}

// QueryFlushed records one query group of size documents.
func (w *MetricsWrapper) QueryFlushed(size int) {
	w.QueryGroups().Inc()
	w.QueryGroupSize().Observe(float64(size))
}

func (w *MetricsWrapper) ParseFailed() {
	w.ParseErrors().Inc()
}

// RunFinished records the outcome of a run and, on success, the final quality values.
func (w *MetricsWrapper) RunFinished(elapsed time.Duration, quality map[string]float64, err error) {
	w.m.RunDuration.Observe(elapsed.Seconds())
	if err != nil {
		w.m.RunsFailed.Inc()
		return
	}
	w.m.RunsCompleted.Inc()
	for name, v := range quality {
		w.m.QualityValue.WithLabelValues(name).Set(v)
	}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

func (cw *CounterWrapper) Add(v float64) {
	cw.c.Add(v)
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
