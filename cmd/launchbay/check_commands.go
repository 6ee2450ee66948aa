package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/urfave/cli/v2"

	"github.com/thelaunchbay/launchbay-engine/internal/tui"
	"github.com/thelaunchbay/launchbay-engine/pkg/registry"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify every image the environment references exists in its registry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "environment",
				Aliases: []string{"e"},
				Usage:   "Environment ID to check (optional when the definition has exactly one)",
			},
		},
		Action: func(c *cli.Context) error {
			_, envCfg, err := loadEnvironment(c)
			if err != nil {
				return err
			}

			images := collectImages(envCfg)
			if len(images) == 0 {
				fmt.Println(tui.RenderInfo("Environment references no container images."))
				return nil
			}

			checker := registry.NewChecker(hclog.Default().Named("registry"))
			for _, image := range images {
				if err := checker.ImageExists(c.Context, image); err != nil {
					fmt.Println(tui.RenderError(image))
					return err
				}
				fmt.Println(tui.RenderSuccess(image))
			}
			fmt.Println(tui.RenderSuccess(fmt.Sprintf("%d image(s) resolved", len(images))))
			return nil
		},
	}
}
