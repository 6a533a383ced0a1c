package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			exists, err := store.Exists()
			if err != nil {
				return fmt.Errorf("failed to check credentials at %s: %w", store.Path(), err)
			}
			if !exists {
				_, _ = fmt.Fprintln(rt.Writer(), "Not logged in. Nothing to do.")
				return nil
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to remove credentials at %s: %w", store.Path(), err)
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged out. Removed credentials from %s\n", store.Path())
			return nil
		},
	}
}
