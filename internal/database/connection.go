// internal/database/connection.go
package database

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/javajoker/cart-engine/internal/config"
	"github.com/javajoker/cart-engine/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", cfg.Driver).Info("Database connection established successfully")
	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		if dir := cfg.DataDir(); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.Product{},
		&models.CouponRecord{},
		&models.AccountCart{},
		&models.AccountCartItem{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_status ON products(category, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)",
		"CREATE INDEX IF NOT EXISTS idx_products_featured ON products(featured, status)",

		// Cart indexes
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_account_cart_items_line ON account_cart_items(cart_id, item_key) WHERE deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_coupons_active ON coupons(active, expires_at)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// SeedCatalog inserts the demo catalog and coupons when the tables are empty.
func SeedCatalog(db *gorm.DB) error {
	logrus.Info("Seeding catalog data...")

	var productCount int64
	if err := db.Model(&models.Product{}).Count(&productCount).Error; err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}

	var couponCount int64
	if err := db.Model(&models.CouponRecord{}).Count(&couponCount).Error; err != nil {
		return fmt.Errorf("failed to count coupons: %w", err)
	}

	err := WithTransaction(db, func(tx *gorm.DB) error {
		if productCount == 0 {
			if err := tx.Create(demoProducts()).Error; err != nil {
				return fmt.Errorf("failed to seed products: %w", err)
			}
		}
		if couponCount == 0 {
			if err := tx.Create(demoCoupons()).Error; err != nil {
				return fmt.Errorf("failed to seed coupons: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"products_seeded": productCount == 0,
		"coupons_seeded":  couponCount == 0,
	}).Info("Catalog seeding completed")
	return nil
}

func demoProducts() []models.Product {
	return []models.Product{
		{ID: "lamp-01", Name: "Desk Lamp", Category: "home", Price: 45000, Stock: 12, TrackQuantity: true, Status: models.ProductStatusActive, Rating: 4.5, Featured: true},
		{ID: "mug-01", Name: "Ceramic Mug", Category: "kitchen", Price: 18000, Stock: 40, TrackQuantity: true, Status: models.ProductStatusActive, Rating: 4.2},
		{ID: "tee-01", Name: "Cotton T-Shirt", Category: "apparel", Price: 39000, Stock: 25, TrackQuantity: true, Status: models.ProductStatusActive, Rating: 4.0, Featured: true},
		{ID: "ebook-01", Name: "Recipe E-Book", Category: "digital", Price: 25000, TrackQuantity: false, Status: models.ProductStatusActive, Rating: 4.8},
		{ID: "chair-01", Name: "Reading Chair", Category: "home", Price: 320000, Stock: 2, TrackQuantity: true, Status: models.ProductStatusActive, Rating: 4.6},
	}
}

func demoCoupons() []models.CouponRecord {
	expired := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.CouponRecord{
		{Code: "SAVE10", Type: models.CouponTypePercentage, Discount: 10, Active: true},
		{Code: "MINUS5000", Type: models.CouponTypeFixed, Discount: 5000, Active: true},
		{Code: "FREESHIP", Type: models.CouponTypeShipping, Discount: 15000, Active: true},
		{Code: "OLD2020", Type: models.CouponTypePercentage, Discount: 20, Active: true, ExpiresAt: &expired},
	}
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
