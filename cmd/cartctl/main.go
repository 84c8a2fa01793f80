// cmd/cartctl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/logging"
)

var (
	verbose bool
	output  string
	timeout time.Duration

	cfg *config.Config
	eng *engine
)

// skipEngine marks commands that run without the cart engine.
const skipEngine = "skip-engine"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cartctl",
	Short: "Drive the storefront cart engine from the terminal",
	Long: `cartctl hosts the cart engine against a local guest slot (SQLite or
Redis) and the remote cart API.

Guest carts live in the local slot. After "cartctl login --token" the cart is
served by the API and the guest cart is merged into the account.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logging.Setup(cfg.Log)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}

		if cmd.Annotations[skipEngine] == "true" {
			return nil
		}

		eng, err = openEngine(cmd.Context(), cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eng != nil {
			eng.Close()
			eng = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, yaml or json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(couponCmd)
	rootCmd.AddCommand(shipMethodCmd)
	rootCmd.AddCommand(shipAddressCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if eng != nil {
			eng.Close()
		}
		os.Exit(1)
	}
}
