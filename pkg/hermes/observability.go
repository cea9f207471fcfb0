// Package hermes carries the gateway's telemetry: a small metrics interface
// with a Prometheus implementation and a no-op for tests.
package hermes

type Label struct {
	Key   string
	Value string
}

type Metrics interface {
	IncCounter(name string, value float64, labels ...Label)
	ObserveHistogram(name string, value float64, labels ...Label)
	SetGauge(name string, value float64, labels ...Label)
}
