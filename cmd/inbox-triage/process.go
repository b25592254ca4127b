package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/display"
	"github.com/mikey/llm-inbox-triage/internal/metrics"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

var processOpts struct {
	dryRun   bool
	force    bool
	limit    int
	parallel int
	yes      bool
}

var processCmd = &cobra.Command{
	Use:   "process [account|all]...",
	Short: "Triage new mail of the given accounts, or of every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return invoke(func(
			o *orchestrator.Orchestrator,
			recorder *metrics.Recorder,
			settings config.AppSettings,
			logger *zap.Logger,
		) error {
			defer logger.Sync()

			confirm := safety.ConfirmFunc(safety.AutoConfirm)
			if !processOpts.yes {
				confirm = newTerminalPrompt(os.Stdin, cmd.ErrOrStderr(), isTerminal(os.Stdin)).Confirm
			}

			report, err := o.Run(ctx, accountArgs(args), orchestrator.Options{
				DryRun:         processOpts.dryRun,
				ForceReprocess: processOpts.force,
				Limit:          processOpts.limit,
				Parallel:       processOpts.parallel,
				Confirm:        confirm,
			})
			if err != nil {
				return err
			}

			cmd.Print(display.Report(report))

			if settings.MetricsFile != "" {
				if err := recorder.WriteTextfile(settings.MetricsFile); err != nil {
					logger.Warn("Failed to write metrics", zap.Error(err))
				}
			}
			if report.Failed() {
				return errRunFailed
			}
			return nil
		})
	},
}

// accountArgs maps the command arguments to account ids; nil selects all
func accountArgs(args []string) []string {
	var ids []string
	seen := map[string]bool{}
	for _, a := range args {
		if a == "all" {
			return nil
		}
		if !seen[a] {
			seen[a] = true
			ids = append(ids, a)
		}
	}
	return ids
}

func init() {
	f := processCmd.Flags()
	f.BoolVar(&processOpts.dryRun, "dry-run", false, "Classify and evaluate rules without writing notes, tagging mail or recording history")
	f.BoolVar(&processOpts.force, "force-reprocess", false, "Include already processed messages and overwrite their notes")
	f.IntVar(&processOpts.limit, "limit", 0, "Maximum messages per account (overrides processing.max_emails_per_run)")
	f.IntVar(&processOpts.parallel, "parallel", 1, "Number of accounts processed concurrently")
	f.BoolVarP(&processOpts.yes, "yes", "y", false, "Confirm cost estimates without prompting")
	rootCmd.AddCommand(processCmd)
}
