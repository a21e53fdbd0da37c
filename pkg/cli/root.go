// Package cli implements the rediscache command line.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
)

// BuildInfo is printed by the version command.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type globalFlags struct {
	configPath string
}

// NewRootCommand returns the rediscache root command with all subcommands attached.
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "rediscache",
		Short:         "Inspect and serve cache server groups",
		Long:          "Resolve configured cache server groups, check their health and serve diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "",
		"Path to config YAML (default ~/.rediscache/configs/rediscache.yaml)")

	root.AddCommand(newGroupsCommand(flags))
	root.AddCommand(newPingCommand(flags))
	root.AddCommand(newServeCommand(flags))
	root.AddCommand(newVersionCommand(info))

	return root
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rediscache %s", info.Version)
			if info.Commit != "" {
				fmt.Fprintf(out, " (commit %s)", info.Commit)
			}
			if info.Date != "" {
				fmt.Fprintf(out, " built %s", info.Date)
			}
			fmt.Fprintln(out)
		},
	}
}

// loadConfig reads and validates the config file selected by --config.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	path := f.configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath("rediscache.yaml")
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, "  - "+e.Error())
		}
		return nil, fmt.Errorf("invalid config %s:\n%s", path, strings.Join(msgs, "\n"))
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, component logging.Component) (*logging.ColoredLogger, error) {
	logger, err := logging.NewLoggerFromConfig(cfg.Logging, component)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
