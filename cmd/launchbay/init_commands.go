package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/thelaunchbay/launchbay-engine/internal/hclgen"
	"github.com/thelaunchbay/launchbay-engine/internal/tui"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Generate a starter launchbay.hcl environment definition",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "project",
				Usage:    "Project name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "cluster-id",
				Usage:    "Target cluster ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "provider",
				Value: "aws",
				Usage: "Cloud provider (aws, gcp, scaleway)",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "Provider region",
			},
			&cli.StringFlag{
				Name:  "image",
				Usage: "Application image reference",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Private port the application listens on",
			},
			&cli.StringFlag{
				Name:  "dir",
				Value: ".",
				Usage: "Directory receiving the definition",
			},
		},
		Action: func(c *cli.Context) error {
			path, err := hclgen.WriteDefinition(hclgen.Params{
				Project:   c.String("project"),
				ClusterID: c.String("cluster-id"),
				Provider:  c.String("provider"),
				Region:    c.String("region"),
				Image:     c.String("image"),
				Port:      c.Int("port"),
			}, c.String("dir"))
			if err != nil {
				return err
			}
			fmt.Println(tui.RenderSuccess(fmt.Sprintf("Wrote %s", path)))
			fmt.Println(tui.RenderInfo("Review the generated definition, then run 'launchbay deploy'."))
			return nil
		},
	}
}
