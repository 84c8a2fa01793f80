// internal/services/sync_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/models"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/repository"
)

// GuestCart is the part of the local store the merge needs.
type GuestCart interface {
	Load(ctx context.Context) *models.Cart
	Clear(ctx context.Context) *models.Cart
}

// SyncRemote is the part of the remote API the merge needs.
type SyncRemote interface {
	GetCart(ctx context.Context) (*models.Cart, error)
	SyncItems(ctx context.Context, req models.SyncItemsRequest) (*models.Cart, error)
}

type SyncResult struct {
	Success           bool              `json:"success"`
	Cart              *models.Cart      `json:"cart"`
	MigratedCount     int               `json:"migratedCount"`
	ConflictsResolved int               `json:"conflictsResolved"`
	SkippedCount      int               `json:"skippedCount"`
	Error             *models.CartError `json:"error"`
}

// SyncService merges the guest cart into the account cart at login. Only one
// merge runs at a time; the guest slot is cleared only after the bulk submit
// is confirmed.
type SyncService struct {
	mu     sync.Mutex
	status models.SyncStatus

	local       GuestCart
	remote      SyncRemote
	calc        *pricing.Calculator
	maxQuantity int
}

func NewSyncService(local GuestCart, remote SyncRemote, calc *pricing.Calculator, maxQuantity int) *SyncService {
	return &SyncService{
		status:      models.SyncStatusIdle,
		local:       local,
		remote:      remote,
		calc:        calc,
		maxQuantity: maxQuantity,
	}
}

func (s *SyncService) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Reset returns the status to IDLE unless a merge is running.
func (s *SyncService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.SyncStatusInProgress {
		s.status = models.SyncStatusIdle
	}
}

func (s *SyncService) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.CanStart() {
		return false
	}
	s.status = models.SyncStatusInProgress
	return true
}

func (s *SyncService) finish(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.status = models.SyncStatusCompleted
	} else {
		s.status = models.SyncStatusFailed
	}
}

// SyncGuestCartToUser runs the merge. It is safe to call again after a
// failure: the guest items are still in place.
func (s *SyncService) SyncGuestCartToUser(ctx context.Context) (result SyncResult) {
	if !s.begin() {
		return SyncResult{Error: models.NewSyncError(models.ErrMsgSyncInProgress, nil)}
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("Cart sync panicked")
			result = SyncResult{Error: models.NewSyncError(models.ErrMsgUnexpectedCollaborator, fmt.Errorf("panic: %v", r))}
		}
		s.finish(result.Success)
	}()

	return s.merge(ctx)
}

func (s *SyncService) merge(ctx context.Context) SyncResult {
	logger := logrus.WithField("component", "cart_sync")

	// 1. capture
	guest := s.local.Load(ctx).Items

	// 2. nothing to merge
	if len(guest) == 0 {
		account, err := s.remote.GetCart(ctx)
		if err != nil {
			logger.WithError(err).Warn("Failed to fetch account cart")
			return SyncResult{Error: models.NewSyncError(models.ErrMsgSyncFetchFailed, err)}
		}
		s.local.Clear(ctx)
		logger.Info("No guest items to merge")
		return SyncResult{Success: true, Cart: repository.Normalize(account, s.calc)}
	}

	// 3. backend state
	account, err := s.remote.GetCart(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to fetch account cart, guest cart kept")
		return SyncResult{Error: models.NewSyncError(models.ErrMsgSyncFetchFailed, err)}
	}
	account = repository.Normalize(account, s.calc)

	// 4. merge
	plan := s.plan(guest, account)

	// 5. bulk submit
	merged := account
	if len(plan.queue) > 0 {
		merged, err = s.remote.SyncItems(ctx, models.SyncItemsRequest{Items: plan.queue})
		if err != nil {
			logger.WithError(err).WithField("queued", len(plan.queue)).Warn("Bulk sync failed, guest cart kept")
			return SyncResult{
				MigratedCount:     plan.migrated,
				ConflictsResolved: plan.conflicts,
				SkippedCount:      plan.skipped,
				Error:             models.NewSyncError(models.ErrMsgSyncSubmitFailed, err),
			}
		}
	}

	// 6. confirm
	if len(plan.queue) > 0 {
		if confirmed, err := s.remote.GetCart(ctx); err != nil {
			logger.WithError(err).Warn("Confirmation fetch failed, using bulk sync response")
		} else {
			merged = confirmed
		}
	}

	// 7. cleanup
	s.local.Clear(ctx)

	logger.WithFields(logrus.Fields{
		"migrated":  plan.migrated,
		"conflicts": plan.conflicts,
		"skipped":   plan.skipped,
	}).Info("Guest cart merged")

	return SyncResult{
		Success:           true,
		Cart:              repository.Normalize(merged, s.calc),
		MigratedCount:     plan.migrated,
		ConflictsResolved: plan.conflicts,
		SkippedCount:      plan.skipped,
	}
}

type mergePlan struct {
	queue     []models.SyncItem
	migrated  int
	conflicts int
	skipped   int
}

// plan decides what to send. Existing lines get the delta between the
// clamped target and what the account already holds.
func (s *SyncService) plan(guest []models.CartItem, account *models.Cart) mergePlan {
	var p mergePlan

	type line struct {
		quantity int
		product  models.ProductSnapshot
	}
	held := make(map[string]*line, len(account.Items))
	for _, item := range account.Items {
		held[item.Key()] = &line{quantity: item.Quantity, product: item.Product}
	}

	for _, item := range guest {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" || item.Quantity < 1 {
			p.skipped++
			continue
		}
		attrs := models.NormalizeAttributes(item.Attributes)
		key := models.ItemKey(productID, attrs)

		if existing, found := held[key]; found {
			target := s.clamp(existing.product, existing.quantity+item.Quantity)
			if target <= existing.quantity {
				p.skipped++
				continue
			}
			p.queue = append(p.queue, models.SyncItem{
				ProductID:  productID,
				Quantity:   target - existing.quantity,
				Attributes: attrs,
				Price:      item.Price,
			})
			existing.quantity = target
			p.conflicts++
			continue
		}

		quantity := s.clamp(item.Product, item.Quantity)
		if quantity < 1 {
			p.skipped++
			continue
		}
		p.queue = append(p.queue, models.SyncItem{
			ProductID:  productID,
			Quantity:   quantity,
			Attributes: attrs,
			Price:      item.Price,
		})
		held[key] = &line{quantity: quantity, product: item.Product}
		p.migrated++
	}
	return p
}

func (s *SyncService) clamp(product models.ProductSnapshot, quantity int) int {
	if quantity > s.maxQuantity {
		quantity = s.maxQuantity
	}
	if product.TrackQuantity && quantity > product.Stock {
		quantity = product.Stock
	}
	return quantity
}
