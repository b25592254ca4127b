package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/errkind"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config ACCOUNT",
	Short: "Print the effective configuration of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(store *config.Store) error {
			global, err := store.LoadGlobal()
			if err != nil {
				return err
			}
			doc, err := store.Effective(global, args[0])
			if err != nil {
				return err
			}
			cfg, err := store.Load(global, args[0])
			if err != nil {
				return err
			}
			doc["blacklist"] = cfg.Blacklist
			doc["whitelist"] = cfg.Whitelist

			out, err := yaml.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			cmd.Printf("# effective configuration for %s\n%s", args[0], out)
			return nil
		})
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List configured accounts and whether their configuration is valid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(store *config.Store) error {
			global, err := store.LoadGlobal()
			if err != nil {
				return err
			}
			ids, err := store.DiscoverAccounts()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				cmd.Printf("No accounts in %s\n", store.Dir())
				return nil
			}

			invalid := 0
			for _, id := range ids {
				if _, err := store.Load(global, id); err != nil {
					invalid++
					cmd.Printf("%-24s invalid (%s): %v\n", id, errkind.Classify(err), err)
					continue
				}
				cmd.Printf("%-24s ok\n", id)
			}
			if invalid > 0 {
				return errors.Join(errRunFailed, fmt.Errorf("%d invalid account(s)", invalid))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(accountsCmd)
}
