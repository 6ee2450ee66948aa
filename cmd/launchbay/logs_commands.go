package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/thelaunchbay/launchbay-engine/pkg/livelog"
)

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Stream a deployment's live logs from the control plane",
		ArgsUsage: "<execution-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "endpoint",
				Usage:    "Log streaming endpoint URL",
				EnvVars:  []string{"LAUNCHBAY_LOG_ENDPOINT"},
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "follow",
				Aliases: []string{"f"},
				Usage:   "Keep streaming until interrupted",
			},
		},
		Action: func(c *cli.Context) error {
			executionID := c.Args().First()
			if executionID == "" {
				return fmt.Errorf("execution ID is required (launchbay logs <execution-id>)")
			}

			done := make(chan struct{})
			tail, err := livelog.NewTail(c.String("endpoint"), executionID, func(frame livelog.Frame) {
				out := os.Stdout
				if frame.Stream == "stderr" {
					out = os.Stderr
				}
				for _, line := range frame.Lines {
					fmt.Fprintln(out, line)
				}
				if !c.Bool("follow") {
					select {
					case <-done:
					default:
						close(done)
					}
				}
			}, hclog.Default().Named("livelog"))
			if err != nil {
				return err
			}
			defer tail.Close()

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(interrupt)

			select {
			case <-done:
			case <-interrupt:
			case <-c.Context.Done():
			}
			return nil
		},
	}
}
