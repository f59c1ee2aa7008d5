package sched

// Config groups scheduler construction parameters.
type Config struct {
	WindowCapacity int           // lookahead bound, 1..WindowCapacity
	Reader         ContentReader // test case content source (FileReader{} for on-disk queues)
	Metrics        *Metrics      // optional; nil disables telemetry
}

// NewConfig creates a Config with all fields explicitly set.
// This is the canonical constructor; all construction sites must use it.
// Parameter order matches struct field order.
func NewConfig(windowCapacity int, reader ContentReader, metrics *Metrics) Config {
	return Config{
		WindowCapacity: windowCapacity,
		Reader:         reader,
		Metrics:        metrics,
	}
}

// DefaultConfig reads test cases from disk with the full window and no metrics.
func DefaultConfig() Config {
	return NewConfig(WindowCapacity, FileReader{}, nil)
}
