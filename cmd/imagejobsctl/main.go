// Command imagejobsctl administers the image jobs database: schema
// migrations, the stored model key, job listings and test tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"imagejobs/internal/infra"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:           "imagejobsctl",
	Short:         "Administer the image jobs service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveDatabaseURL() (string, error) {
	url := strings.TrimSpace(databaseURL)
	if url == "" {
		url = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if url == "" {
		return "", fmt.Errorf("database url is required via --database-url or DATABASE_URL")
	}
	return url, nil
}

func cliLogger(cmd string) infra.Logger {
	return infra.NewLogger("cli").With().Str("cmd", cmd).Logger()
}

// openRunner connects to the database and returns a marker-logging runner.
func openRunner(ctx context.Context, cmd string) (*infra.SQLRunner, func(), error) {
	url, err := resolveDatabaseURL()
	if err != nil {
		return nil, nil, err
	}
	pool, err := infra.NewDBPool(ctx, &infra.Config{DatabaseURL: url})
	if err != nil {
		return nil, nil, err
	}
	return infra.NewSQLRunner(pool, cliLogger(cmd)), pool.Close, nil
}
