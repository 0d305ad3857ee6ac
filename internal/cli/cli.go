// Package cli implements the pathdag command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pathdag/pathdag/pkg/buildinfo"
	"github.com/pathdag/pathdag/pkg/config"
	"github.com/pathdag/pathdag/pkg/pathdag"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pathdag"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	storeKind  string
	storePath  string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "pathdag stores DAGs with fully materialized root-to-node paths",
		Long:         `pathdag is a DAG engine that stores every root-to-node path explicitly, trading write amplification for constant-depth ancestry queries. This CLI mutates and inspects a graph backed by an in-memory, badger or mongo store.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				c.SetLogLevel(log.DebugLevel)
			}
			ctx := withLogger(cmd.Context(), c.Logger)
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", defaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&c.storeKind, "store", "", "override store kind (memory|badger|mongo)")
	root.PersistentFlags().StringVar(&c.storePath, "db", "", "override badger database directory")

	// Register all subcommands
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.parentsCommand())
	root.AddCommand(c.childrenCommand())
	root.AddCommand(c.pathsCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.vizCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Engine Factory
// =============================================================================

// engine bundles an opened store with the mutator and assembler over it.
type engine struct {
	store     pathdag.Store
	mutator   *pathdag.Mutator
	assembler *pathdag.Assembler
}

// openEngine loads the configuration, applies flag overrides and opens the
// configured store. The caller must call close.
func (c *CLI) openEngine(ctx context.Context) (*engine, func(), error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	eng := &engine{
		store:     store,
		mutator:   pathdag.NewMutator(store),
		assembler: pathdag.NewAssembler(store),
	}
	closer := func() {
		if err := store.Close(); err != nil {
			c.Logger.Error("closing store", "err", err)
		}
	}
	return eng, closer, nil
}

func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if c.storeKind != "" {
		cfg.Store.Kind = c.storeKind
	}
	if c.storePath != "" {
		cfg.Store.Path = c.storePath
		if cfg.Store.Kind == "" || cfg.Store.Kind == config.StoreMemory {
			cfg.Store.Kind = config.StoreBadger
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// =============================================================================
// Paths
// =============================================================================

// defaultConfigPath returns the config location using the XDG standard
// (~/.config/pathdag/pathdag.toml).
func defaultConfigPath() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, appName+".toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return appName + ".toml"
	}
	return filepath.Join(home, ".config", appName, appName+".toml")
}

// =============================================================================
// Argument Helpers
// =============================================================================

// parseEntityArg parses a positional entity-id argument.
func parseEntityArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid entity id %q: must be a positive integer", arg)
	}
	return id, nil
}
