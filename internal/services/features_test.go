// internal/services/features_test.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/javajoker/cart-engine/internal/localcart"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/storage"
	"github.com/javajoker/cart-engine/internal/testutil"
)

type cartFeatureContext struct {
	ctx    context.Context
	calc   *pricing.Calculator
	local  *localcart.Store
	remote *testutil.FakeRemote
	sync   *SyncService
	result SyncResult
	totals pricing.Totals
}

func (c *cartFeatureContext) reset() {
	c.ctx = context.Background()
	c.calc = pricing.NewCalculator(150000, 15000, 19)
	c.local = localcart.New(storage.NewMemoryStorage(), c.calc, testCartConfig)
	c.remote = testutil.NewFakeRemote(c.calc, testCartConfig.MaxQuantity)
	c.sync = NewSyncService(c.local, c.remote, c.calc, testCartConfig.MaxQuantity)
	c.result = SyncResult{}
	c.totals = pricing.Totals{}
}

func (c *cartFeatureContext) theGuestCartHolds(table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		qty, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return err
		}
		stock, err := strconv.Atoi(row.Cells[2].Value)
		if err != nil {
			return err
		}
		product := models.ProductSnapshot{
			ID:            row.Cells[0].Value,
			Name:          row.Cells[0].Value,
			Price:         100,
			Stock:         stock,
			TrackQuantity: row.Cells[3].Value == "true",
		}
		if _, err := c.local.AddItem(c.ctx, product, qty, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *cartFeatureContext) theGuestCartIsEmpty() error {
	if items := c.local.Load(c.ctx).Items; len(items) != 0 {
		return fmt.Errorf("expected empty guest cart, found %d items", len(items))
	}
	return nil
}

func (c *cartFeatureContext) theAccountCartIsEmpty() error {
	c.remote.Seed()
	return nil
}

func (c *cartFeatureContext) theAccountCartHoldsProduct(id string, qty, stock int, tracked string) error {
	c.remote.Seed(models.CartItem{
		ProductID: id,
		Product:   models.ProductSnapshot{ID: id, Price: 100, Stock: stock, TrackQuantity: tracked == "true"},
		Quantity:  qty,
		Price:     100,
	})
	return nil
}

func (c *cartFeatureContext) theBulkSyncCallFails() error {
	c.remote.SetFailure("SyncItems", errors.New("network unreachable"))
	return nil
}

func (c *cartFeatureContext) theGuestCartIsSynced() error {
	c.result = c.sync.SyncGuestCartToUser(c.ctx)
	return nil
}

func (c *cartFeatureContext) theSyncSucceeds() error {
	if !c.result.Success {
		return fmt.Errorf("sync failed: %v", c.result.Error)
	}
	return nil
}

func (c *cartFeatureContext) theSyncFails() error {
	if c.result.Success {
		return errors.New("expected sync to fail")
	}
	return nil
}

func (c *cartFeatureContext) theSyncStatusIs(status string) error {
	if got := c.sync.Status(); string(got) != status {
		return fmt.Errorf("expected status %s, got %s", status, got)
	}
	return nil
}

func (c *cartFeatureContext) theAccountCartHolds(table *godog.Table) error {
	got := quantities(c.remote.Snapshot())
	if len(got) != len(table.Rows)-1 {
		return fmt.Errorf("expected %d lines, got %v", len(table.Rows)-1, got)
	}
	for _, row := range table.Rows[1:] {
		want, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return err
		}
		if got[row.Cells[0].Value] != want {
			return fmt.Errorf("product %s: expected %d, got %d", row.Cells[0].Value, want, got[row.Cells[0].Value])
		}
	}
	return nil
}

func (c *cartFeatureContext) noBulkSyncCallWasIssued() error {
	if n := c.remote.Calls("SyncItems"); n != 0 {
		return fmt.Errorf("expected no bulk sync call, got %d", n)
	}
	return nil
}

func (c *cartFeatureContext) conflictsWereResolved(n int) error {
	if c.result.ConflictsResolved != n {
		return fmt.Errorf("expected %d conflicts, got %d", n, c.result.ConflictsResolved)
	}
	return nil
}

func (c *cartFeatureContext) itemsWereMigrated(n int) error {
	if c.result.MigratedCount != n {
		return fmt.Errorf("expected %d migrated, got %d", n, c.result.MigratedCount)
	}
	return nil
}

func (c *cartFeatureContext) theGuestCartStillHolds(n int) error {
	if items := c.local.Load(c.ctx).Items; len(items) != n {
		return fmt.Errorf("expected %d guest items, got %d", n, len(items))
	}
	return nil
}

func (c *cartFeatureContext) aPricingTable(threshold, base float64) error {
	c.calc = pricing.NewCalculator(threshold, base, 19)
	return nil
}

func (c *cartFeatureContext) aCartWithSubtotalIsPriced(subtotal float64) error {
	cart := models.NewCart(0)
	cart.Items = []models.CartItem{{ProductID: "X", Quantity: 1, Price: subtotal}}
	c.totals = c.calc.Totals(cart)
	return nil
}

func (c *cartFeatureContext) theShippingChargedIs(shipping float64) error {
	if c.totals.Shipping != shipping {
		return fmt.Errorf("expected shipping %v, got %v", shipping, c.totals.Shipping)
	}
	return nil
}

func (c *cartFeatureContext) theTotalInvariantHolds() error {
	t := c.totals
	taxable := decimal.NewFromFloat(t.Subtotal).Sub(decimal.NewFromFloat(t.Discount)).Add(decimal.NewFromFloat(t.Shipping))
	want := decimal.Max(decimal.Zero, taxable).Add(decimal.NewFromFloat(t.Tax))
	if !want.Equal(decimal.NewFromFloat(t.Total)) {
		return fmt.Errorf("total %v does not match %v", t.Total, want)
	}
	return nil
}

func InitializeCartScenario(ctx *godog.ScenarioContext) {
	tc := &cartFeatureContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the guest cart holds:$`, tc.theGuestCartHolds)
	ctx.Step(`^the guest cart is empty$`, tc.theGuestCartIsEmpty)
	ctx.Step(`^the account cart is empty$`, tc.theAccountCartIsEmpty)
	ctx.Step(`^the account cart holds product "([^"]*)" with quantity (\d+), stock (\d+), tracked (true|false)$`, tc.theAccountCartHoldsProduct)
	ctx.Step(`^the bulk sync call fails$`, tc.theBulkSyncCallFails)
	ctx.Step(`^a free shipping threshold of (\d+) and a base shipping cost of (\d+)$`, tc.aPricingTable)

	// When steps
	ctx.Step(`^the guest cart is synced to the account$`, tc.theGuestCartIsSynced)
	ctx.Step(`^a cart with subtotal (\d+) is priced$`, tc.aCartWithSubtotalIsPriced)

	// Then steps
	ctx.Step(`^the sync succeeds$`, tc.theSyncSucceeds)
	ctx.Step(`^the sync fails$`, tc.theSyncFails)
	ctx.Step(`^the sync status is "([^"]*)"$`, tc.theSyncStatusIs)
	ctx.Step(`^the account cart holds:$`, tc.theAccountCartHolds)
	ctx.Step(`^no bulk sync call was issued$`, tc.noBulkSyncCallWasIssued)
	ctx.Step(`^(\d+) conflicts? (?:was|were) resolved$`, tc.conflictsWereResolved)
	ctx.Step(`^(\d+) items? (?:was|were) migrated$`, tc.itemsWereMigrated)
	ctx.Step(`^the guest cart still holds (\d+) items?$`, tc.theGuestCartStillHolds)
	ctx.Step(`^the shipping charged is (\d+)$`, tc.theShippingChargedIs)
	ctx.Step(`^the total equals subtotal minus discount plus shipping plus tax$`, tc.theTotalInvariantHolds)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
