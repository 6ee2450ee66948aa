package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/thelaunchbay/launchbay-engine/internal/config"
	"github.com/thelaunchbay/launchbay-engine/internal/orchestrator"
	"github.com/thelaunchbay/launchbay-engine/internal/tui"
	"github.com/thelaunchbay/launchbay-engine/pkg/controlplane"
	"github.com/thelaunchbay/launchbay-engine/pkg/metrics"
	"github.com/thelaunchbay/launchbay-engine/pkg/progress"
	"github.com/thelaunchbay/launchbay-engine/pkg/registry"
	"github.com/thelaunchbay/launchbay-engine/pkg/service"
)

// passFlags are shared by every command that runs an orchestration pass.
func passFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"e"},
			Usage:   "Environment ID to operate on (optional when the definition has exactly one)",
		},
		&cli.StringFlag{
			Name:  "execution-id",
			Usage: "Execution ID tagging this pass (generated when omitted)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Compute plans without applying them",
		},
		&cli.BoolFlag{
			Name:  "plain",
			Usage: "Disable the progress spinner, log to the terminal instead",
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
	}
}

func deployCommand() *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Converge an environment onto its deployment target",
		Flags: append(passFlags(),
			&cli.BoolFlag{
				Name:  "skip-preflight",
				Usage: "Skip the container image preflight",
			}),
		Action: func(c *cli.Context) error {
			cfg, envCfg, err := loadEnvironment(c)
			if err != nil {
				return err
			}
			if !c.Bool("skip-preflight") {
				images := collectImages(envCfg)
				if len(images) > 0 {
					checker := registry.NewChecker(hclog.Default().Named("registry"))
					if err := checker.VerifyAll(c.Context, images); err != nil {
						return fmt.Errorf("image preflight failed: %w", err)
					}
				}
			}
			return runPass(c, cfg, envCfg, "", fmt.Sprintf("Deploying environment %s", envCfg.ID))
		},
	}
}

func pauseCommand() *cli.Command {
	return &cli.Command{
		Name:  "pause",
		Usage: "Scale an environment's workloads down to zero, keeping its data",
		Flags: passFlags(),
		Action: func(c *cli.Context) error {
			cfg, envCfg, err := loadEnvironment(c)
			if err != nil {
				return err
			}
			return runPass(c, cfg, envCfg, service.ActionPause, fmt.Sprintf("Pausing environment %s", envCfg.ID))
		},
	}
}

func destroyCommand() *cli.Command {
	return &cli.Command{
		Name:  "destroy",
		Usage: "Delete an environment's workloads, data and namespace",
		Flags: append(passFlags(),
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the interactive confirmation",
			}),
		Action: func(c *cli.Context) error {
			cfg, envCfg, err := loadEnvironment(c)
			if err != nil {
				return err
			}
			if !c.Bool("yes") {
				confirmed, err := tui.Confirm(fmt.Sprintf("Destroy environment %q and all of its data?", envCfg.ID))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Aborted.")
					return nil
				}
			}
			return runPass(c, cfg, envCfg, service.ActionDelete, fmt.Sprintf("Destroying environment %s", envCfg.ID))
		},
	}
}

// loadEnvironment parses and validates the definition, then selects the
// environment named by --environment, defaulting when only one exists.
func loadEnvironment(c *cli.Context) (*config.Config, *config.EnvironmentConfig, error) {
	cfg, err := config.LoadConfigFile(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	envID := c.String("environment")
	if envID == "" {
		if len(cfg.Environments) != 1 {
			return nil, nil, fmt.Errorf("definition has %d environments (%s), select one with --environment",
				len(cfg.Environments), strings.Join(cfg.ListEnvironmentIDs(), ", "))
		}
		return cfg, cfg.Environments[0], nil
	}

	envCfg := cfg.GetEnvironment(envID)
	if envCfg == nil {
		return nil, nil, fmt.Errorf("environment %q not found in definition (available: %s)",
			envID, strings.Join(cfg.ListEnvironmentIDs(), ", "))
	}
	return cfg, envCfg, nil
}

// runPass builds the target and environment and drives one orchestration
// pass. A non-empty override replaces every service's requested action.
func runPass(c *cli.Context, cfg *config.Config, envCfg *config.EnvironmentConfig, override service.Action, message string) error {
	if override != "" {
		overrideActions(envCfg, override)
	}

	executionID := c.String("execution-id")
	if executionID == "" {
		executionID = uuid.NewString()
	}

	logger := hclog.Default().With("execution_id", executionID)

	var controlPlane *controlplane.Client
	if url := c.String("report-url"); url != "" {
		client, err := controlplane.NewClient(url, c.String("report-token"), logger.Named("controlplane"))
		if err != nil {
			return fmt.Errorf("failed to build control plane client: %w", err)
		}
		controlPlane = client
	}

	var resolver config.DomainResolver
	if controlPlane != nil {
		resolver = controlPlane
	}
	if err := config.ResolveRouterDomains(c.Context, envCfg, resolver); err != nil {
		return err
	}

	env, err := config.BuildEnvironment(cfg, envCfg)
	if err != nil {
		return err
	}
	tgt, err := config.BuildTarget(cfg, envCfg, executionID, c.Bool("dry-run"))
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics.New()),
		orchestrator.WithReporter(progress.NewReporter(progress.DefaultInterval, progress.NewLogListener(logger))),
	}
	if controlPlane != nil {
		opts = append(opts, orchestrator.WithStepReporter(controlPlane))
	}
	orch := orchestrator.New(opts...)

	run := func() error { return orch.Run(c.Context, tgt, env) }
	if c.Bool("plain") {
		if err := run(); err != nil {
			return err
		}
	} else {
		if err := tui.RunSpinnerWithTask(message, run); err != nil {
			return err
		}
	}

	fmt.Println(tui.RenderSuccess(fmt.Sprintf("%s (execution %s)", message, executionID)))
	return nil
}

// overrideActions replaces the requested action of every service in the
// environment definition.
func overrideActions(envCfg *config.EnvironmentConfig, action service.Action) {
	for _, app := range envCfg.Applications {
		app.Action = string(action)
	}
	for _, container := range envCfg.Containers {
		container.Action = string(action)
	}
	for _, db := range envCfg.Databases {
		db.Action = string(action)
	}
	for _, router := range envCfg.Routers {
		router.Action = string(action)
	}
}

// collectImages lists the image references the environment's applications
// and containers run. Container images are relative to their registry.
func collectImages(envCfg *config.EnvironmentConfig) []string {
	var images []string
	for _, app := range envCfg.Applications {
		if app.Image != "" {
			images = append(images, app.Image)
		}
	}
	for _, container := range envCfg.Containers {
		if container.Image == "" {
			continue
		}
		image := container.Image
		if container.RegistryURL != "" {
			image = strings.TrimSuffix(container.RegistryURL, "/") + "/" + strings.TrimPrefix(image, "/")
		}
		images = append(images, image)
	}
	return images
}
