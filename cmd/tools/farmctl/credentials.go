package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/farm-assistant/backend/internal/model/credentials"
)

func newCredentialsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Show or change the inference API key and model",
	}
	cmd.AddCommand(
		newCredentialsShowCmd(root),
		newCredentialsSetCmd(root),
		newCredentialsClearCmd(root),
	)
	return cmd
}

func newCredentialsShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored credentials with the key masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(ctx context.Context, store credentials.Store) error {
				creds, err := store.Credentials(ctx)
				if err != nil {
					return err
				}
				return printCredentials(cmd, creds)
			})
		},
	}
}

func newCredentialsSetCmd(root *rootOptions) *cobra.Command {
	var apiKey, model string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the API key and/or model",
		Long: `Update only the values passed as flags. An empty value clears the
setting, so --model "" goes back to the default model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyChanged := cmd.Flags().Changed("api-key")
			modelChanged := cmd.Flags().Changed("model")
			if !keyChanged && !modelChanged {
				return fmt.Errorf("nothing to update: pass --api-key and/or --model")
			}

			return withStore(cmd, root, func(ctx context.Context, store credentials.Store) error {
				creds, err := store.Credentials(ctx)
				if err != nil {
					return err
				}
				if keyChanged {
					creds.APIKey = apiKey
				}
				if modelChanged {
					creds.Model = model
				}
				if err := store.Save(ctx, creds); err != nil {
					return err
				}
				return printCredentials(cmd, creds)
			})
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Hugging Face API key")
	cmd.Flags().StringVar(&model, "model", "", "model identifier, e.g. "+credentials.DefaultModel)
	return cmd
}

func newCredentialsClearCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, root, func(ctx context.Context, store credentials.Store) error {
				if err := store.Save(ctx, credentials.Credentials{}); err != nil {
					return err
				}
				return printCredentials(cmd, credentials.Credentials{})
			})
		},
	}
}

func withStore(cmd *cobra.Command, root *rootOptions, fn func(context.Context, credentials.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	services, err := root.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = services.Close(context.Background()) }()
	return fn(ctx, services.Credentials)
}

func printCredentials(cmd *cobra.Command, creds credentials.Credentials) error {
	key := "(not set)"
	if creds.HasAPIKey() {
		key = creds.MaskedAPIKey()
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s %s\n",
		labelStyle.Render("API key:"), key,
		labelStyle.Render("Model:  "), creds.ModelOrDefault())
	return err
}
