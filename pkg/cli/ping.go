package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	"github.com/DeBrosOfficial/rediscache/pkg/logging"
	"github.com/DeBrosOfficial/rediscache/pkg/rediscache"
	"github.com/DeBrosOfficial/rediscache/pkg/services"
)

func newPingCommand(flags *globalFlags) *cobra.Command {
	var (
		forceNew bool
		prefix   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping [group]",
		Short: "Acquire a connection to a group and check it answers PING",
		Long:  "Acquire a connection to the named group, or to the first configured group when none is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, logging.ComponentCache)
			if err != nil {
				return err
			}
			defer logger.Sync()

			container, err := services.NewContainer(cfg, logger)
			if err != nil {
				return err
			}
			services.Register(container)

			cache, err := rediscache.Default()
			if err != nil {
				return err
			}

			group := ""
			if len(args) == 1 {
				group = args[0]
			}

			var opts []config.ServerOption
			if cmd.Flags().Changed("prefix") {
				opts = append(opts, config.WithPrefix(prefix))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			defer cache.Close(context.Background())

			start := time.Now()
			if _, err := cache.GetConnection(ctx, group, forceNew, opts...); err != nil {
				if last := cache.LastError(); last != "" {
					return fmt.Errorf("%w (last error: %s)", err, last)
				}
				return err
			}

			label := group
			if label == "" {
				label = cfg.RedisServers.Names()[0] + " (default)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PONG from %s in %s\n", label, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceNew, "new", false, "Force a new connection instead of reusing a cached one")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Override the group's key prefix")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Overall time limit")
	return cmd
}
