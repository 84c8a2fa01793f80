// internal/services/sync_service_test.go
package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/cart-engine/internal/cartapi"
	"github.com/javajoker/cart-engine/internal/localcart"
	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/storage"
	"github.com/javajoker/cart-engine/internal/testutil"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	local  *localcart.Store
	remote *testutil.FakeRemote
	sync   *SyncService
}

func (suite *SyncServiceTestSuite) SetupTest() {
	calc := pricing.NewCalculator(150000, 15000, 19)
	suite.ctx = context.Background()
	suite.local = localcart.New(storage.NewMemoryStorage(), calc, testCartConfig)
	suite.remote = testutil.NewFakeRemote(calc, 99)
	suite.sync = NewSyncService(suite.local, suite.remote, calc, 99)
}

func (suite *SyncServiceTestSuite) addGuest(product models.ProductSnapshot, qty int) {
	_, err := suite.local.AddItem(suite.ctx, product, qty, nil)
	require.NoError(suite.T(), err)
}

func quantities(cart *models.Cart) map[string]int {
	out := make(map[string]int)
	for _, item := range cart.Items {
		out[item.Key()] = item.Quantity
	}
	return out
}

func (suite *SyncServiceTestSuite) TestMigratesIntoEmptyAccount() {
	suite.addGuest(models.ProductSnapshot{ID: "A", Price: 100}, 2)
	suite.addGuest(models.ProductSnapshot{ID: "B", Price: 200}, 1)

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	require.True(suite.T(), res.Success)
	assert.Equal(suite.T(), 2, res.MigratedCount)
	assert.Equal(suite.T(), 0, res.ConflictsResolved)
	assert.Equal(suite.T(), map[string]int{"A": 2, "B": 1}, quantities(suite.remote.Snapshot()))
	assert.Equal(suite.T(), map[string]int{"A": 2, "B": 1}, quantities(res.Cart))
	assert.Empty(suite.T(), suite.local.Load(suite.ctx).Items)
	assert.Equal(suite.T(), models.SyncStatusCompleted, suite.sync.Status())
}

func (suite *SyncServiceTestSuite) TestEmptyGuestIssuesNoSync() {
	suite.remote.Seed(models.CartItem{ProductID: "C", Quantity: 1, Price: 50})

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	require.True(suite.T(), res.Success)
	assert.Equal(suite.T(), 0, suite.remote.Calls("SyncItems"))
	assert.Equal(suite.T(), map[string]int{"C": 1}, quantities(res.Cart))
	assert.Equal(suite.T(), map[string]int{"C": 1}, quantities(suite.remote.Snapshot()))
}

func (suite *SyncServiceTestSuite) TestConflictClampsToStock() {
	stocked := models.ProductSnapshot{ID: "A", Price: 100, Stock: 4, TrackQuantity: true}
	suite.remote.Seed(models.CartItem{ProductID: "A", Product: stocked, Quantity: 2, Price: 100})
	suite.addGuest(stocked, 3)

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	require.True(suite.T(), res.Success)
	assert.Equal(suite.T(), 1, res.ConflictsResolved)
	assert.Equal(suite.T(), 0, res.MigratedCount)
	assert.Equal(suite.T(), []models.SyncItem{{ProductID: "A", Quantity: 2, Attributes: map[string]string{}, Price: 100}}, suite.remote.LastSync())
	assert.Equal(suite.T(), map[string]int{"A": 4}, quantities(suite.remote.Snapshot()))
	assert.Empty(suite.T(), suite.local.Load(suite.ctx).Items)
}

func (suite *SyncServiceTestSuite) TestConflictAlreadyAtStockIsSkipped() {
	stocked := models.ProductSnapshot{ID: "A", Price: 100, Stock: 2, TrackQuantity: true}
	suite.remote.Seed(models.CartItem{ProductID: "A", Product: stocked, Quantity: 2, Price: 100})
	suite.addGuest(stocked, 1)

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	require.True(suite.T(), res.Success)
	assert.Equal(suite.T(), 1, res.SkippedCount)
	assert.Equal(suite.T(), 0, suite.remote.Calls("SyncItems"))
	assert.Empty(suite.T(), suite.local.Load(suite.ctx).Items)
}

func (suite *SyncServiceTestSuite) TestSubmitFailureKeepsGuestCart() {
	suite.addGuest(models.ProductSnapshot{ID: "A", Price: 100}, 1)
	suite.remote.SetFailure("SyncItems", errors.New("connection reset"))

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	assert.False(suite.T(), res.Success)
	assert.Equal(suite.T(), models.CodeSync, res.Error.Code)
	assert.Equal(suite.T(), models.SyncStatusFailed, suite.sync.Status())
	assert.Len(suite.T(), suite.local.Load(suite.ctx).Items, 1)

	suite.remote.SetFailure("SyncItems", nil)
	res = suite.sync.SyncGuestCartToUser(suite.ctx)
	require.True(suite.T(), res.Success)
	assert.Equal(suite.T(), map[string]int{"A": 1}, quantities(suite.remote.Snapshot()))
}

func (suite *SyncServiceTestSuite) TestFetchFailureKeepsGuestCart() {
	suite.addGuest(models.ProductSnapshot{ID: "A", Price: 100}, 1)
	suite.remote.SetFailure("GetCart", &cartapi.Error{StatusCode: http.StatusUnauthorized})

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	assert.False(suite.T(), res.Success)
	assert.Equal(suite.T(), 0, suite.remote.Calls("SyncItems"))
	assert.Len(suite.T(), suite.local.Load(suite.ctx).Items, 1)
}

func (suite *SyncServiceTestSuite) TestConfirmFailureFallsBackToSyncResponse() {
	suite.addGuest(models.ProductSnapshot{ID: "A", Price: 100}, 1)
	calls := 0
	suite.remote.Before = func(_ context.Context, op string) error {
		if op == "GetCart" {
			calls++
			if calls == 2 {
				return errors.New("timeout")
			}
		}
		return nil
	}

	res := suite.sync.SyncGuestCartToUser(suite.ctx)

	require.True(suite.T(), res.Success)
	assert.Equal(suite.T(), map[string]int{"A": 1}, quantities(res.Cart))
	assert.Empty(suite.T(), suite.local.Load(suite.ctx).Items)
}

func (suite *SyncServiceTestSuite) TestIdempotent() {
	suite.addGuest(models.ProductSnapshot{ID: "A", Price: 100}, 2)

	first := suite.sync.SyncGuestCartToUser(suite.ctx)
	require.True(suite.T(), first.Success)
	before := suite.remote.Snapshot()

	second := suite.sync.SyncGuestCartToUser(suite.ctx)
	require.True(suite.T(), second.Success)
	assert.Equal(suite.T(), 0, second.MigratedCount)
	assert.Equal(suite.T(), 1, suite.remote.Calls("SyncItems"))
	assert.Equal(suite.T(), quantities(before), quantities(suite.remote.Snapshot()))
}

func (suite *SyncServiceTestSuite) TestRejectsConcurrentRun() {
	suite.addGuest(models.ProductSnapshot{ID: "A", Price: 100}, 1)
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	suite.remote.Before = func(_ context.Context, op string) error {
		if op == "SyncItems" {
			once.Do(func() { close(entered) })
			<-release
		}
		return nil
	}

	done := make(chan SyncResult)
	go func() { done <- suite.sync.SyncGuestCartToUser(suite.ctx) }()
	<-entered

	assert.Equal(suite.T(), models.SyncStatusInProgress, suite.sync.Status())
	concurrent := suite.sync.SyncGuestCartToUser(suite.ctx)
	assert.False(suite.T(), concurrent.Success)
	assert.Equal(suite.T(), models.ErrMsgSyncInProgress, concurrent.Error.Message)

	close(release)
	assert.True(suite.T(), (<-done).Success)
	assert.Equal(suite.T(), 1, suite.remote.Calls("SyncItems"))
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}
