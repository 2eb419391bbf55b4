package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ucliu/internal/config"
)

// ConfigCmd groups the configuration commands.
type ConfigCmd struct {
	Init  ConfigInitCmd  `cmd:"" help:"Write a configuration file holding the defaults."`
	Show  ConfigShowCmd  `cmd:"" help:"Print the effective configuration."`
	Check ConfigCheckCmd `cmd:"" help:"Validate the configuration and list problems."`
}

// ConfigInitCmd scaffolds a configuration file.
type ConfigInitCmd struct {
	Format string `help:"Output format." enum:"toml,json,yaml" default:"toml"`
	Output string `help:"Destination file. Defaults to config.<format> in the platform config directory." type:"path" placeholder:"FILE"`
	Force  bool   `help:"Overwrite an existing file."`
}

func (c *ConfigInitCmd) Run() error {
	dest, err := c.run()
	if err != nil {
		return err
	}
	fmt.Println("wrote", dest)
	return nil
}

func (c *ConfigInitCmd) run() (string, error) {
	dest := c.Output
	if dest == "" {
		dest = filepath.Join(config.PlatformConfigDir(), "config."+c.Format)
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return "", errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := config.SaveConfig(config.DefaultConfig(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// ConfigShowCmd prints the configuration after file, environment and flag
// overrides.
type ConfigShowCmd struct {
	Format string `help:"Output format." enum:"toml,json,yaml" default:"toml"`
}

func (c *ConfigShowCmd) Run(cfg *config.Config, src *configSource) error {
	return c.run(cfg, src.path, os.Stdout)
}

func (c *ConfigShowCmd) run(cfg *config.Config, path string, out io.Writer) error {
	data, err := config.Marshal(cfg, c.Format)
	if err != nil {
		return err
	}
	if c.Format == "toml" || c.Format == "yaml" {
		fmt.Fprintf(out, "# %s\n", describeSource(path))
	}
	_, err = out.Write(data)
	return err
}

// ConfigCheckCmd validates the configuration.
type ConfigCheckCmd struct{}

func (c *ConfigCheckCmd) Run(cfg *config.Config, src *configSource) error {
	return c.run(cfg, src.path, os.Stdout)
}

func (c *ConfigCheckCmd) run(cfg *config.Config, path string, out io.Writer) error {
	fmt.Fprintln(out, describeSource(path))
	issues := config.Check(cfg)
	for _, w := range issues.Warnings() {
		fmt.Fprintf(out, "warning: %s: %s\n", w.Field, w.Message)
	}
	errs := issues.Errors()
	for _, e := range errs {
		fmt.Fprintf(out, "error:   %s: %s\n", e.Field, e.Message)
	}
	if len(errs) > 0 {
		return config.ErrInvalidConfig
	}
	fmt.Fprintln(out, "ok")
	return nil
}

func describeSource(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "defaults (no file at " + path + ")"
	}
	return "from " + path
}
