package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	// Import builtin providers to register them
	_ "github.com/thelaunchbay/launchbay-engine/builtin/aws"
	_ "github.com/thelaunchbay/launchbay-engine/builtin/gcp"
	_ "github.com/thelaunchbay/launchbay-engine/builtin/scaleway"
)

// Version is set via ldflags at build time.
// Example: go build -ldflags "-X main.Version=1.2.0"
var Version = "dev"

func main() {
	// A .env next to the binary is a convenience for local runs; absence
	// is the normal case in production.
	_ = godotenv.Load()

	app := &cli.App{
		Name:                   "launchbay",
		Usage:                  "LaunchBay deployment engine - converges environments onto Kubernetes and managed cloud services",
		Version:                Version,
		UseShortOptionHandling: true,
		EnableBashCompletion:   true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "launchbay.hcl",
				Usage:   "Path to the environment definition file",
				EnvVars: []string{"LAUNCHBAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"LAUNCHBAY_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			initCommand(),
			deployCommand(),
			pauseCommand(),
			destroyCommand(),
			infraCommand(),
			checkCommand(),
			logsCommand(),
			agentCommand(),
		},
		Before: func(c *cli.Context) error {
			logger := hclog.New(&hclog.LoggerOptions{
				Name:  "launchbay",
				Level: hclog.LevelFromString(c.String("log-level")),
				Color: hclog.AutoColor,
			})
			hclog.SetDefault(logger)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
