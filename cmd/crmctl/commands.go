package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wolfman30/lead-crm/internal/auth"
	"github.com/wolfman30/lead-crm/internal/leads"
)

// app carries what the commands need; open is swapped out in tests.
type app struct {
	open func(ctx context.Context) (*leads.LeadService, func(), error)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Administer the lead CRM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newHashPasswordCmd(),
		newSummaryCmd(a),
		newExportCmd(a),
	)

	return root
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print a bcrypt hash suitable for ADMIN_PASSWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show pipeline statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service, cleanup, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			sum, err := service.Summary(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}

			fmt.Fprintf(out, "Total:           %d\n", sum.Total)
			fmt.Fprintf(out, "Contacted:       %d\n", sum.Contacted)
			fmt.Fprintf(out, "Converted:       %d\n", sum.Converted)
			fmt.Fprintf(out, "Conversion rate: %.1f%%\n", sum.ConversionRate)
			if len(sum.BySource) > 0 {
				fmt.Fprintln(out, "By source:")
				sources := make([]string, 0, len(sum.BySource))
				for source := range sum.BySource {
					sources = append(sources, source)
				}
				sort.Strings(sources)
				for _, source := range sources {
					fmt.Fprintf(out, "  %-14s %d\n", source, sum.BySource[source])
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var status, source, search string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write leads as a JSON array to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := leads.Filter{Search: search, Source: source}
			if status != "" {
				parsed, err := leads.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}

			service, cleanup, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := service.ListLeads(cmd.Context(), filter)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only export leads with this status")
	cmd.Flags().StringVar(&source, "source", "", "only export leads from this source")
	cmd.Flags().StringVar(&search, "search", "", "only export leads matching this text")
	return cmd
}
