package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agscout/agscout/internal/enrich"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <startup-id...>",
	Short: "Research contact details for stored startups",
	Long:  "Runs LinkedIn, email, and phone research for the given startups on a bounded worker pool. Contacts fresher than the configured window are returned from cache.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		linkedin, _ := cmd.Flags().GetBool("linkedin")
		email, _ := cmd.Flags().GetBool("email")
		phone, _ := cmd.Flags().GetBool("phone")
		asJSON, _ := cmd.Flags().GetBool("json")

		reqs := make([]enrich.Request, 0, len(args))
		for _, id := range args {
			reqs = append(reqs, enrich.Request{
				StartupID:       id,
				IncludeLinkedIn: linkedin,
				IncludeEmail:    email,
				IncludePhone:    phone,
			})
		}

		outcomes := env.Worker.EnrichMany(ctx, reqs)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcomes)
		}

		formatOutcomes(os.Stdout, args, outcomes)
		return nil
	},
}

func init() {
	enrichCmd.Flags().Bool("linkedin", false, "research the LinkedIn profile (all steps run when no step flag is set)")
	enrichCmd.Flags().Bool("email", false, "research email addresses")
	enrichCmd.Flags().Bool("phone", false, "research phone numbers")
	enrichCmd.Flags().Bool("json", false, "emit full outcomes as JSON")
	rootCmd.AddCommand(enrichCmd)
}

// formatOutcomes writes one line per requested startup.
func formatOutcomes(out io.Writer, ids []string, outcomes []*enrich.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STARTUP\tEMAILS\tPHONES\tLINKEDIN\tSOURCE")
	_, _ = fmt.Fprintln(w, "-------\t------\t------\t--------\t------")

	for i, o := range outcomes {
		if o == nil || o.Findings == nil {
			status := "failed"
			if o != nil && o.Job != nil && o.Job.Error != "" {
				status = "failed: " + o.Job.Error
			}
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", ids[i], status)
			continue
		}

		source := "live"
		if o.Findings.FromCache {
			source = "cache"
		}
		linkedin := o.Findings.LinkedInURL
		if linkedin != "" && !o.Findings.LinkedInVerified {
			linkedin += " (unverified)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			o.Startup.Name,
			strings.Join(o.Findings.Emails, ", "),
			strings.Join(o.Findings.Phones, ", "),
			linkedin,
			source,
		)
	}
	_ = w.Flush()
}
