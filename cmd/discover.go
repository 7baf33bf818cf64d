package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agscout/agscout/internal/discover"
	"github.com/agscout/agscout/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [url...]",
	Short: "Discover startups from seed URLs and source tiers",
	Long:  "Walks the given seed URLs, then falls back through accelerator, industry, news, and search tiers until the target count is reached.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		target, _ := cmd.Flags().GetInt("target")
		country, _ := cmd.Flags().GetString("country")
		userID, _ := cmd.Flags().GetString("user")
		noValidate, _ := cmd.Flags().GetBool("no-validate")
		noStore, _ := cmd.Flags().GetBool("no-store")
		asJSON, _ := cmd.Flags().GetBool("json")

		opts := discover.Options{
			SeedURLs:    args,
			TargetCount: target,
			MaxRetries:  cfg.Discovery.MaxRetries,
			RetryDelay:  time.Duration(cfg.Discovery.RetryDelaySecs) * time.Second,
			Validate:    !noValidate,
			Store:       !noStore,
			Country:     country,
		}
		if opts.TargetCount == 0 {
			opts.TargetCount = cfg.Discovery.TargetCount
		}

		outcome, err := env.Orchestrator.Run(ctx, userID, opts)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		}

		formatOutcome(os.Stdout, outcome)
		return nil
	},
}

func init() {
	discoverCmd.Flags().Int("target", 0, "stop after this many accepted candidates (default from config)")
	discoverCmd.Flags().String("country", "", "bias search queries toward a country")
	discoverCmd.Flags().String("user", "default", "portfolio owner for stored records")
	discoverCmd.Flags().Bool("no-validate", false, "accept every extracted candidate without scoring")
	discoverCmd.Flags().Bool("no-store", false, "skip persisting accepted candidates")
	discoverCmd.Flags().Bool("json", false, "emit the full run outcome as JSON")
	rootCmd.AddCommand(discoverCmd)
}

// formatOutcome writes a human-readable run summary to w.
func formatOutcome(out io.Writer, o *discover.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Job:\t%s (%s)\n", o.Job.ID, o.Job.Status)
	_, _ = fmt.Fprintf(w, "Sources:\t%d processed, %d ok, %d failed\n",
		o.Job.ProcessedURLs, o.Job.SuccessfulScrapes, o.Job.FailedScrapes)
	_, _ = fmt.Fprintf(w, "Accepted:\t%d (%d high quality, avg score %.1f)\n",
		o.Summary.Accepted, o.Summary.HighQuality, o.Summary.AverageScore)
	_, _ = fmt.Fprintf(w, "Stored:\t%d\n", o.Summary.Stored)
	_, _ = fmt.Fprintf(w, "Tiers walked:\t%d\n", o.Summary.TiersWalked)
	_ = w.Flush()

	if len(o.Stored) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tWEBSITE\tLOCATION\tSCORE")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------\t-----")
	for _, s := range o.Stored {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			s.Name, s.Website, formatLocation(s), s.ValidationScore)
	}
	_ = w.Flush()
}

func formatLocation(s model.StoredStartup) string {
	switch {
	case s.City != "" && s.Country != "":
		return s.City + ", " + s.Country
	case s.City != "":
		return s.City
	default:
		return s.Country
	}
}
