package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"esims/cmd/esimctl/client"
)

// Download submits a download, optionally with an explicit activation code.
func Download(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "download [activation-code]",
		Short: "Download an eSIM profile (defaults to the server's activation code)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			}
			id, err := api().Download(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// Status prints an in-flight download.
func Status(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status <request-id>",
		Short: "Show the state of an in-flight download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := api().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s state=%s attempt=%d\n", req.ID, req.State, req.Attempt)
			return nil
		},
	}
}

// Profiles prints the active subscriptions.
func Profiles(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List active subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := api().Profiles(cmd.Context())
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no active subscriptions")
				return nil
			}
			for _, p := range profiles {
				fmt.Fprintln(cmd.OutOrStdout(), p.String())
			}
			return nil
		},
	}
}

// Activate switches to an embedded profile.
func Activate(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <subscription-id>",
		Short: "Make an embedded profile the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subscriptionID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("subscription id must be an integer: %w", err)
			}
			id, err := api().Activate(cmd.Context(), subscriptionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// Deactivate leaves no embedded profile active.
func Deactivate(api func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate the active embedded profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := api().Deactivate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
