package infra

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/thelaunchbay/launchbay-engine/pkg/engine"
	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
	"github.com/thelaunchbay/launchbay-engine/pkg/metrics"
	"github.com/thelaunchbay/launchbay-engine/pkg/progress"
)

// Releaser is the helm surface the rollout needs. Satisfied by
// *helm.Executor; tests inject fakes recording invocation order.
type Releaser interface {
	UpgradeInstall(ctx context.Context, chart helm.Chart) error
	History(ctx context.Context, release, namespace string) ([]helm.HistoryRow, error)
}

// Rollout deploys chart levels strictly in order. Charts within one
// level converge concurrently; a single chart failure aborts the whole
// rollout before the next level starts.
type Rollout struct {
	releaser    Releaser
	reporter    *progress.Reporter
	metrics     *metrics.Metrics
	executionID string
}

// Option customizes rollout behavior.
type Option func(*Rollout)

// WithReporter emits periodic progress while levels converge.
func WithReporter(r *progress.Reporter) Option {
	return func(ro *Rollout) {
		ro.reporter = r
	}
}

// WithMetrics counts per-chart rollout results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ro *Rollout) {
		ro.metrics = m
	}
}

// NewRollout builds a rollout over the given helm surface.
func NewRollout(releaser Releaser, executionID string, opts ...Option) *Rollout {
	ro := &Rollout{releaser: releaser, executionID: executionID}
	for _, opt := range opts {
		opt(ro)
	}
	return ro
}

// Deploy converges every level in order. A level must fully succeed -
// every chart installed and showing a successful history row - before
// the next level begins.
func (ro *Rollout) Deploy(ctx context.Context, levels [][]helm.Chart) error {
	log := hclog.FromContext(ctx)
	if log == nil {
		log = hclog.Default()
	}

	for i, level := range levels {
		log.Info("deploying infrastructure chart level", "level", i+1, "charts", len(level))

		deployLevel := func(ctx context.Context) error {
			g, gctx := errgroup.WithContext(ctx)
			for _, chart := range level {
				chart := chart
				g.Go(func() error {
					err := ro.deployChart(gctx, chart)
					ro.metrics.IncChartRollout(chart.Name, err)
					return err
				})
			}
			return g.Wait()
		}

		var err error
		if ro.reporter != nil {
			info := progress.Info{
				ExecutionID: ro.executionID,
				Scope:       engine.EngineScope(),
				Message:     fmt.Sprintf("infrastructure chart level %d/%d is still deploying", i+1, len(levels)),
			}
			err = ro.reporter.Track(ctx, info, deployLevel)
		} else {
			err = deployLevel(ctx)
		}
		if err != nil {
			log.Error("infrastructure chart level failed, aborting rollout", "level", i+1, "error", err)
			return engine.NewInternal(engine.EngineScope(), ro.executionID,
				fmt.Sprintf("infrastructure chart level %d failed", i+1), err)
		}
	}
	return nil
}

func (ro *Rollout) deployChart(ctx context.Context, chart helm.Chart) error {
	if err := ro.releaser.UpgradeInstall(ctx, chart); err != nil {
		return err
	}
	rows, err := ro.releaser.History(ctx, chart.Name, chart.Namespace)
	if err != nil {
		return fmt.Errorf("failed to read history for chart %s: %w", chart.Name, err)
	}
	if !helm.HasSuccessfulRow(rows) {
		return fmt.Errorf("chart %s has no successful deployment history", chart.Name)
	}
	return nil
}
