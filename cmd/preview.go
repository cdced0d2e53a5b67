package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/link-unfurler/internal/api"
)

// newPreviewCmd creates the one-shot 'preview' subcommand.
func newPreviewCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "preview <url>",
		Short: "Print the preview for a single URL as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			target, err := api.ValidateTarget(args[0])
			if err != nil {
				return err
			}

			result, err := appInstance.Service.PreviewFromURL(cmd.Context(), target, appInstance.Policy())
			if err != nil {
				return fmt.Errorf("preview %s: %w", target, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "emit single-line JSON")
	return cmd
}
