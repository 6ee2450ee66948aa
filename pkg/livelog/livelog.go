// Package livelog streams deployment output to the control plane over
// socket.io so operators can follow a rollout as it happens.
package livelog

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	socketio "github.com/zishang520/socket.io/clients/socket/v3"
)

const (
	logEvent  = "deploy-log"
	logPath   = "/deploy-logs"
	flushRate = 500 * time.Millisecond
)

// Streamer buffers deployment log chunks and ships them to the
// control plane keyed by execution ID.
type Streamer struct {
	socket       *socketio.Socket
	executionID  string
	stdoutBuffer []string
	stderrBuffer []string
	counter      int
	connected    bool
	mu           sync.Mutex
	done         chan struct{}
	logger       hclog.Logger
}

// NewStreamer connects to the live-log endpoint and starts the
// background flush loop.
func NewStreamer(endpoint, executionID string, logger hclog.Logger) (*Streamer, error) {
	s := &Streamer{
		executionID:  executionID,
		stdoutBuffer: []string{},
		stderrBuffer: []string{},
		done:         make(chan struct{}),
		logger:       logger,
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		logger.Warn("failed to parse live-log URL", "url", endpoint, "error", err)
		return s, err
	}
	u.Path = logPath

	socket, err := socketio.Connect(u.String(), nil)
	if err != nil {
		logger.Warn("failed to connect to live-log endpoint", "url", u.String(), "error", err)
		return s, err
	}

	socket.On("connect", func(args ...any) {
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
		logger.Info("live-log stream connected", "url", u.String(), "executionID", executionID)
	})

	socket.On("disconnect", func(args ...any) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		logger.Info("live-log stream disconnected", "executionID", executionID)
	})

	socket.On("connect_error", func(args ...any) {
		if len(args) > 0 {
			logger.Warn("live-log connection error", "error", args[0])
		}
	})

	s.socket = socket
	s.connected = socket.Connected()

	go s.flushLoop()

	return s, nil
}

// Write adds a log chunk to the stdout or stderr buffer.
func (s *Streamer) Write(chunk string, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch output {
	case "stdout":
		s.stdoutBuffer = append(s.stdoutBuffer, chunk)
	case "stderr":
		s.stderrBuffer = append(s.stderrBuffer, chunk)
	}
}

func (s *Streamer) flushLoop() {
	ticker := time.NewTicker(flushRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.done:
			return
		}
	}
}

// flush wraps each buffer in a framed message: execution ID, stream
// name and a monotonic counter let the control plane reorder late
// frames.
func (s *Streamer) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}

	if len(s.stdoutBuffer) > 0 {
		content := fmt.Sprintf("%s\nstdout\n%d\n%s",
			s.executionID,
			s.counter,
			strings.Join(s.stdoutBuffer, "\n"))

		s.socket.Emit(logEvent, content)
		s.stdoutBuffer = []string{}
		s.counter++
	}

	if len(s.stderrBuffer) > 0 {
		content := fmt.Sprintf("%s\nstderr\n%d\n%s",
			s.executionID,
			s.counter,
			strings.Join(s.stderrBuffer, "\n"))

		s.socket.Emit(logEvent, content)
		s.stderrBuffer = []string{}
		s.counter++
	}
}

// Flush forces an immediate flush of buffered logs.
func (s *Streamer) Flush() error {
	s.flush()
	return nil
}

// End flushes remaining logs, stops the flush loop and closes the
// connection.
func (s *Streamer) End() error {
	s.Flush()
	close(s.done)

	if s.socket != nil {
		s.socket.Close()
	}

	s.logger.Info("live-log stream closed", "executionID", s.executionID)
	return nil
}
