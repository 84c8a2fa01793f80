// cmd/cartctl/engine.go
package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/auth"
	"github.com/javajoker/cart-engine/internal/cartapi"
	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/localcart"
	"github.com/javajoker/cart-engine/internal/pricing"
	"github.com/javajoker/cart-engine/internal/repository"
	"github.com/javajoker/cart-engine/internal/services"
	"github.com/javajoker/cart-engine/internal/storage"
	"github.com/javajoker/cart-engine/internal/store"
)

// engine wires the cart stack the way a storefront session would.
type engine struct {
	storage storage.Storage
	session *auth.Session
	client  *cartapi.Client
	local   *localcart.Store
	store   *store.CartStore
	unbind  func()
}

func openEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	slot, err := storage.Open(ctx, cfg.Storage, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}

	session, err := auth.NewSession(ctx, slot, cfg.Cart.TokenKey)
	if err != nil {
		slot.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	calc := pricing.NewCalculator(cfg.Pricing.FreeShippingThreshold, cfg.Pricing.BaseShippingCost, cfg.Pricing.TaxRate)
	client := cartapi.NewClient(cfg.API, session)
	local := localcart.New(slot, calc, cfg.Cart)
	repo := repository.NewCartRepository(session, local, client, calc)

	cartStore := store.NewCartStore(
		services.NewCartService(repo, cfg.Cart),
		services.NewSyncService(local, client, calc, cfg.Cart.MaxQuantity),
		calc,
		cfg.Cart.CacheTTL,
	)

	e := &engine{
		storage: slot,
		session: session,
		client:  client,
		local:   local,
		store:   cartStore,
	}

	res := cartStore.Init(ctx)
	if !res.Success {
		logrus.WithField("error", res.Error).Warn("Initial cart load failed")
	}
	e.unbind = cartStore.BindAuth(ctx, session)

	logrus.WithFields(logrus.Fields{
		"mode":    cartStore.Mode(),
		"storage": cfg.Storage.Driver,
		"api":     cfg.API.BaseURL,
	}).Debug("Cart engine ready")
	return e, nil
}

func (e *engine) Close() {
	if e.unbind != nil {
		e.unbind()
	}
	if err := e.storage.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close local storage")
	}
}
