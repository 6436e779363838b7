package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/suggestion"
)

func newSuggestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggestions",
		Short: "List the quick questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := suggestion.NewMemoryStore(suggestion.Seed())
			for _, item := range store.List() {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", labelStyle.Render(fmt.Sprintf("%-14s", item.ID)), item.Question); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
