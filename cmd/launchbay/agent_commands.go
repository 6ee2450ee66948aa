package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/thelaunchbay/launchbay-engine/internal/dispatch"
	"github.com/thelaunchbay/launchbay-engine/internal/orchestrator"
	"github.com/thelaunchbay/launchbay-engine/pkg/controlplane"
	"github.com/thelaunchbay/launchbay-engine/pkg/events"
	"github.com/thelaunchbay/launchbay-engine/pkg/livelog"
	"github.com/thelaunchbay/launchbay-engine/pkg/metrics"
	"github.com/thelaunchbay/launchbay-engine/pkg/progress"
	"github.com/thelaunchbay/launchbay-engine/pkg/target"
)

// liveStream bundles one execution's live-log connection.
type liveStream struct {
	streamer *livelog.Streamer
	writer   *livelog.StreamWriter
}

// newLiveStream connects to the live-log endpoint. Returns nil when no
// endpoint is configured or the connection fails; streaming is best
// effort and never blocks a deployment.
func newLiveStream(endpoint, executionID string, logger hclog.Logger) *liveStream {
	if endpoint == "" {
		return nil
	}
	streamer, err := livelog.NewStreamer(endpoint, executionID, logger)
	if err != nil {
		logger.Warn("live-log streaming disabled", "endpoint", endpoint, "error", err)
		return nil
	}
	return &liveStream{streamer: streamer, writer: livelog.NewStreamWriter(streamer, "stdout")}
}

// end flushes remaining lines and closes the connection.
func (s *liveStream) end() {
	if s == nil {
		return
	}
	s.writer.Flush()
	_ = s.streamer.End()
}

func agentCommand() *cli.Command {
	return &cli.Command{
		Name:  "agent",
		Usage: "Run as a long-lived agent consuming deployment tasks from NATS",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "nats-url",
				Usage:    "NATS server URLs (comma separated)",
				EnvVars:  []string{"LAUNCHBAY_NATS_URL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "nats-nkey-seed",
				Usage:    "NKey seed authenticating against NATS",
				EnvVars:  []string{"LAUNCHBAY_NATS_NKEY_SEED"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "subject",
				Value:   "launchbay.tasks",
				Usage:   "Subject carrying deployment tasks",
				EnvVars: []string{"LAUNCHBAY_TASK_SUBJECT"},
			},
			&cli.StringFlag{
				Name:    "queue",
				Value:   "launchbay-engine",
				Usage:   "Queue group sharing the task subject across agents",
				EnvVars: []string{"LAUNCHBAY_TASK_QUEUE"},
			},
			&cli.StringFlag{
				Name:    "event-prefix",
				Usage:   "Subject prefix for published deployment events",
				EnvVars: []string{"LAUNCHBAY_EVENT_PREFIX"},
			},
			&cli.StringFlag{
				Name:    "listen",
				Value:   ":9090",
				Usage:   "Address serving /healthz and /metrics",
				EnvVars: []string{"LAUNCHBAY_AGENT_LISTEN"},
			},
			&cli.DurationFlag{
				Name:  "task-timeout",
				Value: dispatch.DefaultTaskTimeout,
				Usage: "Per-task execution timeout",
			},
			&cli.StringFlag{
				Name:    "livelog-endpoint",
				Usage:   "Live-log socket.io endpoint streaming tool output (optional)",
				EnvVars: []string{"LAUNCHBAY_LIVELOG_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "report-url",
				Usage:   "Control plane base URL for step reporting (optional)",
				EnvVars: []string{"LAUNCHBAY_CONTROL_PLANE_URL"},
			},
			&cli.StringFlag{
				Name:    "report-token",
				Usage:   "Control plane access token",
				EnvVars: []string{"LAUNCHBAY_CONTROL_PLANE_TOKEN"},
			},
		},
		Action: runAgent,
	}
}

func runAgent(c *cli.Context) error {
	logger := hclog.Default().Named("agent")

	client, err := events.NewClient(c.String("nats-url"), c.String("nats-nkey-seed"),
		c.String("event-prefix"), logger.Named("events"))
	if err != nil {
		return err
	}
	defer client.Close()

	var controlPlane *controlplane.Client
	var steps orchestrator.StepReporter
	if url := c.String("report-url"); url != "" {
		reporter, err := controlplane.NewClient(url, c.String("report-token"), logger.Named("controlplane"))
		if err != nil {
			return fmt.Errorf("failed to build control plane client: %w", err)
		}
		controlPlane = reporter
		steps = reporter
	}

	m := metrics.New()
	livelogEndpoint := c.String("livelog-endpoint")
	run := func(ctx context.Context, tgt *target.Target, env *orchestrator.Environment) error {
		runLogger := logger.With("execution_id", tgt.ExecutionID, "environment", env.ID)
		listener := progress.NewMultiListener(
			progress.NewLogListener(runLogger),
			progress.NewMetricsListener(m),
			events.NewListener(client, env.ID, runLogger),
		)
		opts := []orchestrator.Option{
			orchestrator.WithLogger(runLogger),
			orchestrator.WithMetrics(m),
			orchestrator.WithReporter(progress.NewReporter(progress.DefaultInterval, listener)),
		}
		if steps != nil {
			opts = append(opts, orchestrator.WithStepReporter(steps))
		}

		sink := events.NewLogSink(client, tgt.ExecutionID, runLogger)
		stream := newLiveStream(livelogEndpoint, tgt.ExecutionID, runLogger)
		tgt.LogSink = func(serviceID, tool string) io.Writer {
			w := sink.ServiceOutput(serviceID, tool)
			if stream == nil {
				return w
			}
			return io.MultiWriter(w, stream.writer)
		}

		err := orchestrator.New(opts...).Run(ctx, tgt, env)

		status := events.StatusSucceeded
		if err != nil {
			status = events.StatusFailed
		}
		if closeErr := sink.Close(status); closeErr != nil {
			runLogger.Warn("failed to close log stream", "error", closeErr)
		}
		stream.end()

		if err == nil {
			m.SetLastSuccessfulDeployment(time.Now())
		}
		return err
	}

	handlerOpts := []dispatch.HandlerOption{
		dispatch.WithPublisher(client),
		dispatch.WithRunFunc(run),
	}
	if controlPlane != nil {
		handlerOpts = append(handlerOpts, dispatch.WithDomainResolver(controlPlane))
	}
	handler := dispatch.NewHandler(logger.Named("dispatch"), handlerOpts...)
	subscriber := dispatch.NewSubscriber(client.Conn(), c.String("subject"), c.String("queue"),
		handler, logger.Named("dispatch"),
		dispatch.WithTaskTimeout(c.Duration("task-timeout")))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if err := subscriber.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: c.String("listen"), Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent listening", "addr", srv.Addr, "subject", c.String("subject"), "queue", c.String("queue"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case sig := <-interrupt:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
		cancel()
		return err
	case <-ctx.Done():
	}

	cancel()
	if err := subscriber.Drain(); err != nil {
		logger.Warn("failed to drain subscription", "error", err)
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
