package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordJobResult forwards the result to all sinks, returning the first error encountered.
func (m *MultiSink) RecordJobResult(res JobResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordJobResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordStep forwards step records when supported by the sink.
func (m *MultiSink) RecordStep(rec StepRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(StepRecorder); ok {
			if err := r.RecordStep(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRoute forwards route records when supported by the sink.
func (m *MultiSink) RecordRoute(rec RouteRecord) error {
	for _, s := range m.Sinks {
		if r, ok := s.(RouteRecorder); ok {
			if err := r.RecordRoute(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFleetSize forwards fleet size metrics when supported by the sink.
func (m *MultiSink) RecordFleetSize(size int) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(FleetSizeRecorder); ok {
			if err := fr.RecordFleetSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}
