package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/credentials"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/output"
)

type statusView struct {
	LoggedIn  bool              `json:"loggedIn" yaml:"loggedIn"`
	Storage   string            `json:"storage" yaml:"storage"`
	User      *credentials.User `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Expired   bool              `json:"expired" yaml:"expired"`
	Corrupt   bool              `json:"corrupt,omitempty" yaml:"corrupt,omitempty"`
}

func NewStatusCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			view := statusView{Storage: store.Path()}
			cred, err := store.Load()
			switch {
			case errors.Is(err, credentials.ErrCorrupt):
				rt.Logger().Warnw("Ignoring corrupt credentials", "path", store.Path(), "error", err)
				view.Corrupt = true
			case err != nil:
				return fmt.Errorf("failed to read credentials from %s: %w", store.Path(), err)
			case cred != nil:
				view.LoggedIn = true
				view.User = &cred.User
				view.ExpiresAt = &cred.ExpiresAt
				view.Expired = cred.Expired(time.Now())
			}
			if format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, view)
			}
			writeStatusText(rt.Writer(), view)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func writeStatusText(w io.Writer, view statusView) {
	if view.Corrupt {
		_, _ = fmt.Fprintf(w, "Not logged in (stored credentials at %s are corrupt)\n", view.Storage)
		return
	}
	if !view.LoggedIn {
		_, _ = fmt.Fprintln(w, "Not logged in")
		return
	}
	state := "expires"
	if view.Expired {
		state = "expired"
	}
	_, _ = fmt.Fprintf(w, "Logged in as %s (%s tier)\n", view.User.Email, view.User.Tier)
	_, _ = fmt.Fprintf(w, "Token %s at %s\n", state, view.ExpiresAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Credentials stored in %s\n", view.Storage)
}
