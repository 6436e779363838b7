package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/farm-assistant/backend/internal/export"
	"github.com/zhouzirui/farm-assistant/backend/internal/service/chat"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		format       string
		timeout      time.Duration
		suggestionID string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the assistant one question and print the conversation",
		Long: `Open a fresh session, submit the question and wait for the reply.

Without an API key the answer comes from the canned reply pool. Use
--format to print the transcript as json, yaml or markdown instead of
the styled terminal view. --suggestion asks one of the quick questions
listed by "farmctl suggestions".`,
		Args: func(cmd *cobra.Command, args []string) error {
			if suggestionID == "" && len(args) == 0 {
				return fmt.Errorf("pass a question or --suggestion")
			}
			if suggestionID != "" && len(args) > 0 {
				return fmt.Errorf("pass either a question or --suggestion, not both")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var exporter export.Exporter
			if format != "" {
				var err error
				if exporter, err = export.NewExporter(format); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			services, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = services.Close(closeCtx)
			}()

			session, err := services.Chat.CreateSession(ctx)
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			if suggestionID != "" {
				item, ok := services.Suggestions.FindByID(suggestionID)
				if !ok {
					return fmt.Errorf("unknown suggestion %q", suggestionID)
				}
				question = item.Question
			}

			turn, err := session.Submit(question)
			if errors.Is(err, chat.ErrEmptyInput) {
				return fmt.Errorf("question is empty")
			}
			if err != nil {
				return err
			}

			var waitCh <-chan time.Time
			if timeout > 0 {
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				waitCh = timer.C
			}
			select {
			case <-turn.Done():
			case <-waitCh:
				// Closing cancels the lookup; the turn then settles with the fixed failure reply.
				session.Close()
				<-turn.Done()
			}

			snapshot := session.Snapshot()
			if exporter != nil {
				return exporter.Export(snapshot, cmd.OutOrStdout())
			}
			return renderTranscript(cmd.OutOrStdout(), snapshot)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "print as json, yaml or markdown")
	cmd.Flags().StringVarP(&suggestionID, "suggestion", "s", "", "ask the quick question with this id")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting for the reply after this long (0 waits)")
	return cmd
}
