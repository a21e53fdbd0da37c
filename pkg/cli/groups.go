package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newGroupsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List configured server groups in resolution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tDRIVER\tPERSISTENT\tPREFIX")
			for i, g := range cfg.RedisServers {
				name := g.Name
				if i == 0 {
					name += " (default)"
				}
				opts := g.Server.Options
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					name, g.Server.Address(), opts.DriverOrDefault(), opts.Persistent, opts.Prefix)
			}
			return w.Flush()
		},
	}
}
