// ucliu - Liu (嘸蝦米) input method
//
// ucliu watches the keyboard, turns Liu codes into Chinese characters and
// pastes the chosen candidate into the focused window.
//
//	ucliu run              Start the input method (default)
//	ucliu try              Compose in the terminal without touching the keyboard hook
//	ucliu dict check       Load and validate the dictionaries
//	ucliu dict lookup      Show candidates for codes
//	ucliu dict add|remove  Edit the custom dictionary
//	ucliu config init      Write a default configuration file
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"ucliu/internal/config"
	"ucliu/internal/logging"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// CLI is the command line. Flags named after config keys (logging.level,
// overlay.mode, ...) also take their defaults from the config file.
type CLI struct {
	Globals

	Run    RunCmd    `cmd:"" default:"withargs" help:"Start the input method."`
	Try    TryCmd    `cmd:"" help:"Compose in the terminal without hooking the keyboard."`
	Dict   DictCmd   `cmd:"" help:"Inspect and edit dictionaries."`
	Config ConfigCmd `cmd:"" help:"Manage the configuration file."`

	Version kong.VersionFlag `help:"Print version and exit."`
}

// Globals are accepted by every command.
type Globals struct {
	ConfigFile string       `name:"config" help:"Configuration file (TOML, JSON or YAML)." type:"path" placeholder:"FILE"`
	Log        LoggingFlags `embed:"" prefix:"logging."`
}

// LoggingFlags override the [logging] section.
type LoggingFlags struct {
	Level  string `help:"Log level: debug, info, warn or error." placeholder:"LEVEL"`
	Format string `help:"Log format: text or json." placeholder:"FORMAT"`
	Output string `help:"Log destination: stdout, stderr, file or both." placeholder:"DEST"`
	Input  bool   `name:"input" help:"Log typed keys and committed text. Debugging only."`
}

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configCandidatePaths(userCfg)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ucliu"),
		kong.Description("Liu input method: type codes, get characters."),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	cfgPath := userCfg
	if cfgPath == "" {
		cfgPath = config.FindConfigFile()
	}
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("ucliu: " + err.Error() + "\n")
		os.Exit(2)
	}
	cli.Log.apply(&cfg.Logging)
	cfg.ExpandPaths()

	// The try command owns the terminal, so its logs go to the file.
	if strings.HasPrefix(ctx.Command(), "try") && cfg.Logging.Output != "file" {
		cfg.Logging.Output = "file"
	}
	logger, err := newLogger(cfg, cli.Log.Input)
	if err != nil {
		_, _ = os.Stderr.WriteString("ucliu: failed to set up logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer logger.Close()
	logging.SetDefault(logger)

	ctx.Bind(cfg, logger, &configSource{path: cfgPath})
	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

// configSource records which file the configuration was read from. The file
// may not exist, in which case the defaults are in effect.
type configSource struct {
	path string
}

func (l LoggingFlags) apply(c *config.LoggingConfig) {
	if l.Level != "" {
		c.Level = l.Level
	}
	if l.Format != "" {
		c.Format = l.Format
	}
	if l.Output != "" {
		c.Output = l.Output
	}
}

func newLogger(cfg *config.Config, logInput bool) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	lc.Level = level
	lc.Format = format
	if cfg.Logging.Output != "" {
		lc.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSize = int64(cfg.Logging.MaxSizeMB)
	}
	lc.MaxBackups = cfg.Logging.MaxBackups
	lc.LogInput = logInput
	return logging.New(lc)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("UCLIU_CONFIG"); v != "" {
		return v
	}
	return ""
}

// configCandidatePaths sorts the files kong should read flag defaults from
// by format. An explicit file is the only candidate; otherwise config.toml,
// config.json and config.yaml are looked up beside the executable and in the
// platform config directory.
func configCandidatePaths(userCfg string) (jsonPaths, yamlPaths, tomlPaths []string) {
	add := func(p string) {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json":
			jsonPaths = append(jsonPaths, p)
		case ".yaml", ".yml":
			yamlPaths = append(yamlPaths, p)
		case ".toml":
			tomlPaths = append(tomlPaths, p)
		}
	}
	if userCfg != "" {
		add(userCfg)
		return
	}
	for _, dir := range []string{config.ExecutableDir(), config.PlatformConfigDir()} {
		for _, ext := range config.SupportedConfigFormats() {
			add(filepath.Join(dir, "config."+ext))
		}
	}
	return
}
