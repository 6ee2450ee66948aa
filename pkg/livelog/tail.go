package livelog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	socketio "github.com/zishang520/socket.io/clients/socket/v3"
)

// Frame is one decoded live-log message.
type Frame struct {
	ExecutionID string
	Stream      string
	Sequence    int
	Lines       []string
}

// FrameHandler receives decoded frames in arrival order.
type FrameHandler func(Frame)

// Tail subscribes to the live-log stream of one execution.
type Tail struct {
	socket *socketio.Socket
	logger hclog.Logger
}

// NewTail connects to the live-log endpoint and invokes handler for
// every frame that belongs to executionID.
func NewTail(endpoint, executionID string, handler FrameHandler, logger hclog.Logger) (*Tail, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse live-log URL %s: %w", endpoint, err)
	}
	u.Path = logPath

	socket, err := socketio.Connect(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to live-log endpoint: %w", err)
	}

	socket.On(logEvent, func(args ...any) {
		if len(args) == 0 {
			return
		}
		raw, ok := args[0].(string)
		if !ok {
			return
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			logger.Warn("dropping malformed live-log frame", "error", err)
			return
		}
		if frame.ExecutionID != executionID {
			return
		}
		handler(frame)
	})

	logger.Info("tailing deployment logs", "executionID", executionID)
	return &Tail{socket: socket, logger: logger}, nil
}

// Close disconnects from the live-log endpoint.
func (t *Tail) Close() error {
	if t.socket != nil {
		t.socket.Close()
	}
	return nil
}

// DecodeFrame parses the wire framing produced by Streamer.flush:
// execution ID, stream name and sequence on their own lines, followed
// by the log payload.
func DecodeFrame(raw string) (Frame, error) {
	parts := strings.SplitN(raw, "\n", 4)
	if len(parts) < 4 {
		return Frame{}, fmt.Errorf("frame has %d sections, want 4", len(parts))
	}

	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return Frame{}, fmt.Errorf("invalid frame sequence %q: %w", parts[2], err)
	}

	return Frame{
		ExecutionID: parts[0],
		Stream:      parts[1],
		Sequence:    seq,
		Lines:       strings.Split(parts[3], "\n"),
	}, nil
}
