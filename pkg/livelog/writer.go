package livelog

import (
	"bytes"
	"sync"
)

// StreamWriter adapts a Streamer into an io.Writer so process output
// can be piped straight into the live-log stream.
type StreamWriter struct {
	streamer *Streamer
	output   string // "stdout" or "stderr"
	buffer   []byte
	mu       sync.Mutex
}

// NewStreamWriter creates a writer that feeds the given output stream.
func NewStreamWriter(streamer *Streamer, output string) *StreamWriter {
	return &StreamWriter{
		streamer: streamer,
		output:   output,
		buffer:   []byte{},
	}
}

// Write buffers bytes and forwards complete lines to the streamer.
func (w *StreamWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, p...)

	for {
		idx := bytes.IndexByte(w.buffer, '\n')
		if idx == -1 {
			break
		}

		line := string(w.buffer[:idx])
		w.buffer = w.buffer[idx+1:]

		w.streamer.Write(line, w.output)
	}

	return len(p), nil
}

// Flush forwards any partial line still in the buffer.
func (w *StreamWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buffer) > 0 {
		w.streamer.Write(string(w.buffer), w.output)
		w.buffer = []byte{}
	}
}
