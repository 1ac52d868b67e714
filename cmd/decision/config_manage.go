package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/doctor"
)

func configCommand() cli.Command {
	return cli.Command{
		Name:  "config",
		Usage: "Inspect configuration.",
		Subcommands: []cli.Command{
			{
				Name:  "check",
				Usage: "Validate configuration and the checkout it points at.",
				Flags: commonFlags(
					cli.BoolFlag{Name: "json", Usage: "output the report as JSON"},
				),
				Action: runConfigCheck,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration as YAML.",
				Flags:  commonFlags(),
				Action: runConfigShow,
			},
			{
				Name:      "get",
				Usage:     "Print one effective configuration value.",
				ArgsUsage: "<path>",
				Flags:     commonFlags(),
				Action:    runConfigGet,
			},
			{
				Name:      "set",
				Usage:     "Set a value in the configuration file, keeping it only if it validates.",
				ArgsUsage: "<path> <value>",
				Flags:     commonFlags(),
				Action:    runConfigSet,
			},
		},
	}
}

func runConfigCheck(c *cli.Context) error {
	cfg, err := config.Read(c.String("config"), os.LookupEnv)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(defaultTimeout)
	defer cancel()

	result := doctor.New(cfg, nil).Validate(ctx)

	if c.Bool("json") {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		fmt.Fprintln(c.App.Writer, out)
	} else {
		fmt.Fprint(c.App.Writer, doctor.FormatHuman(result))
	}

	if !result.Valid {
		return errors.New("configuration check failed")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	cfg, err := config.Read(c.String("config"), os.LookupEnv)
	if err != nil {
		return err
	}
	out, err := config.Render(cfg)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, out)
	return nil
}

func runConfigGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: decision config get <path>")
	}
	cfg, err := config.Read(c.String("config"), os.LookupEnv)
	if err != nil {
		return err
	}
	v, err := cfg.GetPath(c.Args().First())
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, string(data))
	default:
		fmt.Fprintln(c.App.Writer, v)
	}
	return nil
}

func runConfigSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: decision config set <path> <value>")
	}
	file := c.String("config")
	if file == "" {
		return errors.New("config set needs --config (or DECISION_CONFIG)")
	}
	path, value := c.Args().Get(0), c.Args().Get(1)
	if err := config.SetPath(file, path, value); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s = %s\n", path, value)
	return nil
}
