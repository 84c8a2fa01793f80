// cmd/cartctl/commands.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/utils"
)

var (
	addQuantity int
	itemAttrs   map[string]string

	loginToken string

	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration

	address models.ShippingAddress
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printCart(cmd.OutOrStdout(), output, viewOf(eng.store))
	},
}

var addCmd = &cobra.Command{
	Use:   "add <productId>",
	Short: "Add a product to the cart",
	Long: `Add a product to the cart. The product snapshot (name, price, stock) is
fetched from the catalog endpoint and kept on the cart line.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		product, err := eng.client.GetProduct(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to look up product %s: %w", args[0], err)
		}
		return runAndShow(cmd, eng.store.AddItem(ctx, *product, addQuantity, itemAttrs))
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <productId> <quantity>",
	Short: "Set the quantity of a cart line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		return runAndShow(cmd, eng.store.UpdateItem(ctx, args[0], quantity, itemAttrs))
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <productId>",
	Short: "Remove a cart line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return runAndShow(cmd, eng.store.RemoveItem(ctx, args[0], itemAttrs))
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every line from the cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return runAndShow(cmd, eng.store.ClearCart(ctx))
	},
}

var couponCmd = &cobra.Command{
	Use:   "coupon <code>",
	Short: "Apply a coupon (signed-in carts only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return runAndShow(cmd, eng.store.ApplyCoupon(ctx, args[0]))
	},
}

var shipMethodCmd = &cobra.Command{
	Use:       "ship-method <STANDARD|EXPRESS|PICKUP>",
	Short:     "Choose the shipping method (signed-in carts only)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"STANDARD", "EXPRESS", "PICKUP"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return runAndShow(cmd, eng.store.UpdateShippingMethod(ctx, models.ShippingMethod(args[0])))
	},
}

var shipAddressCmd = &cobra.Command{
	Use:   "ship-address",
	Short: "Set the shipping address (signed-in carts only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		return runAndShow(cmd, eng.store.UpdateShippingAddress(ctx, address))
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with an access token and merge the guest cart",
	Long: `Persist the access token in the local slot. Signing in switches the cart
to the account and merges the guest cart into it; the guest cart is kept if
the merge fails, and "cartctl sync" retries it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if eng.session.IsAuthenticated() {
			return errors.New("already signed in, run \"cartctl logout\" first")
		}
		if err := eng.session.Login(ctx, loginToken); err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}
		if !eng.session.IsAuthenticated() {
			return errors.New("token is expired")
		}
		return reportSync(cmd)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and return to the guest cart",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := eng.session.Logout(ctx); err != nil {
			return fmt.Errorf("failed to sign out: %w", err)
		}
		return printCart(cmd.OutOrStdout(), output, viewOf(eng.store))
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry merging the guest cart into the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !eng.session.IsAuthenticated() {
			return errors.New(models.ErrMsgAuthRequired)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		eng.store.OnLogin(ctx)
		return reportSync(cmd)
	},
}

var tokenCmd = &cobra.Command{
	Use:         "token",
	Short:       "Mint a development access token with the configured secret",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipEngine: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(tokenUser) == "" {
			return errors.New("--user is required")
		}
		utils.SetJWTSecret(cfg.JWT.SecretKey)
		utils.SetJWTIssuer(cfg.JWT.Issuer)

		token, err := utils.GenerateJWT(tokenUser, tokenEmail, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	addCmd.Flags().IntVarP(&addQuantity, "quantity", "q", 1, "Quantity to add")
	for _, cmd := range []*cobra.Command{addCmd, updateCmd, removeCmd} {
		cmd.Flags().StringToStringVarP(&itemAttrs, "attr", "a", nil, "Line attributes, e.g. --attr size=M,color=red")
	}

	loginCmd.Flags().StringVar(&loginToken, "token", "", "Access token")
	loginCmd.MarkFlagRequired("token")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id (subject)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")

	f := shipAddressCmd.Flags()
	f.StringVar(&address.FullName, "full-name", "", "Recipient name")
	f.StringVar(&address.Line1, "line1", "", "Street address")
	f.StringVar(&address.Line2, "line2", "", "Apartment, suite, etc.")
	f.StringVar(&address.City, "city", "", "City")
	f.StringVar(&address.State, "state", "", "State or department")
	f.StringVar(&address.PostalCode, "postal-code", "", "Postal code")
	f.StringVar(&address.Country, "country", "", "Country code")
	f.StringVar(&address.Phone, "phone", "", "Contact phone")
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func runAndShow(cmd *cobra.Command, res services.Result) error {
	if err := resultError(res); err != nil {
		return err
	}
	return printCart(cmd.OutOrStdout(), output, viewOf(eng.store))
}

func reportSync(cmd *cobra.Command) error {
	if eng.store.SyncStatus() == models.SyncStatusFailed {
		if cartErr := eng.store.Error(); cartErr != nil {
			return fmt.Errorf("cart merge failed, guest cart kept: %s", cartErr.Message)
		}
		return errors.New("cart merge failed, guest cart kept")
	}
	return printCart(cmd.OutOrStdout(), output, viewOf(eng.store))
}
