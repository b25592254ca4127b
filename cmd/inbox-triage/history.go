package main

import (
	"github.com/spf13/cobra"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/display"
	"github.com/mikey/llm-inbox-triage/internal/factory"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history ACCOUNT",
	Short: "List the most recently processed messages of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(store *config.Store, ledgers *factory.LedgerFactory) error {
			global, err := store.LoadGlobal()
			if err != nil {
				return err
			}
			cfg, err := store.Load(global, args[0])
			if err != nil {
				return err
			}
			if cfg.Ledger.Type == "" || cfg.Ledger.Type == "memory" {
				cmd.Printf("Account %s uses the in-memory ledger; nothing is kept between runs.\n", args[0])
				return nil
			}

			l, err := ledgers.CreateLedger(cmd.Context(), cfg.Ledger)
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.Recent(cmd.Context(), cfg.AccountID, historyLimit)
			if err != nil {
				return err
			}
			cmd.Print(display.History(cfg.AccountID, entries))
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	rootCmd.AddCommand(historyCmd)
}
