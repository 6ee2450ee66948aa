package events

import (
	"bytes"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// LogWriter implements io.Writer over the event stream: helm and
// terraform process output is split into lines and published as it is
// produced. Publish failures never fail the write; losing a log line is
// preferable to failing a deployment.
type LogWriter struct {
	publisher   Publisher
	executionID string
	serviceID   string
	tool        string
	logger      hclog.Logger

	mu       sync.Mutex
	buffer   []byte
	sequence int
}

// NewLogWriter builds a writer streaming one tool's output for one
// execution.
func NewLogWriter(pub Publisher, executionID, serviceID, tool string, logger hclog.Logger) *LogWriter {
	if logger == nil {
		logger = hclog.Default()
	}
	return &LogWriter{
		publisher:   pub,
		executionID: executionID,
		serviceID:   serviceID,
		tool:        tool,
		logger:      logger,
	}
}

// Write implements io.Writer, buffering until complete lines are
// available.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, p...)
	for {
		idx := bytes.IndexByte(w.buffer, '\n')
		if idx == -1 {
			break
		}
		line := string(w.buffer[:idx+1])
		w.buffer = w.buffer[idx+1:]
		w.publishLine(line)
	}
	return len(p), nil
}

func (w *LogWriter) publishLine(content string) {
	w.sequence++
	line := LogLine{
		ExecutionID: w.executionID,
		ServiceID:   w.serviceID,
		Tool:        w.tool,
		Content:     content,
		Timestamp:   time.Now().UnixMilli(),
		Sequence:    w.sequence,
	}
	if w.publisher == nil {
		return
	}
	if err := w.publisher.PublishLogLine(line); err != nil {
		w.logger.Warn("failed to publish log line", "error", err, "execution_id", w.executionID)
	}
}

// Flush publishes any buffered partial line.
func (w *LogWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buffer) > 0 {
		w.publishLine(string(w.buffer))
		w.buffer = nil
	}
	return nil
}

// Close flushes remaining content.
func (w *LogWriter) Close() error {
	return w.Flush()
}
