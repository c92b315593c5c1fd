// Package commands defines the esimctl command tree and flag bindings.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"esims/cmd/esimctl/client"
)

// Root returns the root command for esimctl.
func Root() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:           "esimctl",
		Short:         "Drive eSIM downloads and profile switches on an esims server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", envOr("ESIMS_ADDR", client.DefaultAddr), "esims server base URL")

	api := func() *client.Client { return client.New(addr, nil) }

	cmd.AddCommand(Download(api))
	cmd.AddCommand(Status(api))
	cmd.AddCommand(Profiles(api))
	cmd.AddCommand(Activate(api))
	cmd.AddCommand(Deactivate(api))
	cmd.AddCommand(Events(api))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
