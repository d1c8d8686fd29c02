package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imagejobs/internal/infra/credentials"
)

var (
	setKeyValue string
	setKeyModel string
)

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the Gemini API key used when GEMINI_API_KEY is unset",
	RunE:  runSetKey,
}

func init() {
	setKeyCmd.Flags().StringVar(&setKeyValue, "key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	setKeyCmd.Flags().StringVar(&setKeyModel, "model", "", "Model name recorded alongside the key")
	rootCmd.AddCommand(setKeyCmd)
}

func runSetKey(cmd *cobra.Command, _ []string) error {
	key := strings.TrimSpace(setKeyValue)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		return fmt.Errorf("gemini api key is required via --key or GEMINI_API_KEY")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	runner, closeDB, err := openRunner(ctx, "set-key")
	if err != nil {
		return err
	}
	defer closeDB()

	if err := credentials.NewStore(runner).SetGeminiAPIKey(ctx, key, setKeyModel); err != nil {
		return fmt.Errorf("store gemini key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "gemini api key stored")
	return nil
}
