package events

import (
	"io"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// LogSink fans raw process output into per-service log writers for one
// execution. The same (service, tool) pair always resolves to the same
// writer, so sequence numbers stay monotonic across invocations.
type LogSink struct {
	publisher   Publisher
	executionID string
	logger      hclog.Logger

	mu      sync.Mutex
	writers map[string]*LogWriter
}

// NewLogSink builds a sink publishing one execution's process output.
func NewLogSink(pub Publisher, executionID string, logger hclog.Logger) *LogSink {
	if logger == nil {
		logger = hclog.Default()
	}
	return &LogSink{
		publisher:   pub,
		executionID: executionID,
		logger:      logger,
		writers:     map[string]*LogWriter{},
	}
}

// ServiceOutput returns the writer receiving tool output attributed to
// the given service.
func (s *LogSink) ServiceOutput(serviceID, tool string) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := serviceID + "/" + tool
	w, ok := s.writers[key]
	if !ok {
		w = NewLogWriter(s.publisher, s.executionID, serviceID, tool, s.logger)
		s.writers[key] = w
	}
	return w
}

// Close flushes every buffered partial line and publishes the
// end-of-log marker with the pass's final status.
func (s *LogSink) Close(status Status) error {
	s.mu.Lock()
	writers := make([]*LogWriter, 0, len(s.writers))
	for _, w := range s.writers {
		writers = append(writers, w)
	}
	s.mu.Unlock()

	for _, w := range writers {
		if err := w.Close(); err != nil {
			s.logger.Warn("failed to flush log writer", "error", err, "execution_id", s.executionID)
		}
	}
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishLogEnd(LogEnd{ExecutionID: s.executionID, Status: status})
}
