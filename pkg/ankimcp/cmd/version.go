package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/output"
	"github.com/ankimcp/anki-mcp-server/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show ankimcp version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			info := version.GetBuildInfo()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			if rt != nil {
				writer = rt.Writer()
			}

			if format != output.FormatText {
				return output.WriteObject(writer, format, info)
			}
			_, _ = fmt.Fprintln(writer, info.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}
