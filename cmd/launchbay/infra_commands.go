package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/thelaunchbay/launchbay-engine/internal/config"
	"github.com/thelaunchbay/launchbay-engine/internal/infra"
	"github.com/thelaunchbay/launchbay-engine/internal/tui"
	"github.com/thelaunchbay/launchbay-engine/pkg/helm"
	"github.com/thelaunchbay/launchbay-engine/pkg/metrics"
	"github.com/thelaunchbay/launchbay-engine/pkg/progress"
	"github.com/thelaunchbay/launchbay-engine/pkg/provider"
)

func infraCommand() *cli.Command {
	return &cli.Command{
		Name:  "infra",
		Usage: "Roll out the cluster infrastructure charts, level by level",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "namespace",
				Value: "launchbay-system",
				Usage: "Namespace receiving the infrastructure releases",
			},
			&cli.BoolFlag{
				Name:  "metrics-history",
				Usage: "Install the metrics retention stack",
			},
			&cli.BoolFlag{
				Name:  "log-history",
				Usage: "Install the log retention stack",
			},
			&cli.DurationFlag{
				Name:  "chart-timeout",
				Value: 10 * time.Minute,
				Usage: "Timeout for each chart install",
			},
			&cli.StringFlag{
				Name:  "values",
				Usage: "YAML file with per-chart value overrides",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfigFile(c.String("config"))
			if err != nil {
				return err
			}

			prov, err := provider.New(cfg.Cluster.Provider, cfg.Cluster.ProviderSettings)
			if err != nil {
				return err
			}

			var overrides map[string][]helm.Value
			if path := c.String("values"); path != "" {
				overrides, err = infra.LoadOverrides(path)
				if err != nil {
					return err
				}
			}

			levels := infra.ChartsToDeploy(infra.Config{
				TemplateDir:  cfg.Cluster.TemplateDir,
				Namespace:    c.String("namespace"),
				ChartTimeout: c.Duration("chart-timeout"),
				Overrides:    overrides,
			}, infra.Flags{
				MetricsHistory: c.Bool("metrics-history"),
				LogHistory:     c.Bool("log-history"),
			})

			executionID := uuid.NewString()
			logger := hclog.Default().With("execution_id", executionID)
			executor := helm.NewExecutor(cfg.Cluster.Kubeconfig, prov.CredentialsEnvironmentVariables())
			rollout := infra.NewRollout(executor, executionID,
				infra.WithMetrics(metrics.New()),
				infra.WithReporter(progress.NewReporter(progress.DefaultInterval, progress.NewLogListener(logger))))

			charts := 0
			for _, level := range levels {
				charts += len(level)
			}
			logger.Info("rolling out infrastructure charts",
				"cluster", cfg.Cluster.ID, "levels", len(levels), "charts", charts)

			if err := rollout.Deploy(hclog.WithContext(c.Context, logger), levels); err != nil {
				return err
			}
			fmt.Println(tui.RenderSuccess(fmt.Sprintf("Infrastructure converged on cluster %s", cfg.Cluster.ID)))
			return nil
		},
	}
}
