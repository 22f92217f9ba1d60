package database

import (
	"fmt"
	"strings"
	"time"

	"timeout-exchange-go/internal/config"
	"timeout-exchange-go/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// allModels lists every table owned by the exchange, parents first.
var allModels = []any{
	&models.User{},
	&models.Stock{},
	&models.Trade{},
	&models.MarketClock{},
	&models.Purchase{},
	&models.Gift{},
	&models.Bet{},
	&models.BetPayout{},
}

// NewDatabase creates a new database connection, migrates the schema and seeds initial data.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Open connects to the configured driver without touching the schema.
func Open(cfg config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// SQLite allows a single writer, and each in-memory connection is its own database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// AutoMigrate creates missing tables and populates the stocks and the market clock.
func AutoMigrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return Seed(db, cfg, time.Now())
}

// Seed inserts any configured stock that does not exist yet and the market clock row.
// Existing rows are left untouched so restarts never reset prices.
func Seed(db *gorm.DB, cfg *config.Config, now time.Time) error {
	m := cfg.Market
	for _, def := range cfg.Stocks {
		code := strings.ToUpper(def.Code)
		stock := models.Stock{
			Code:             code,
			Name:             def.Name,
			Value:            def.Price,
			Drift:            m.BaseDrift,
			Volatility:       m.BaseVolatility,
			Volume:           m.BaseVolume,
			BasePrice:        def.Price,
			ActorTargetPrice: def.Price,
		}
		if err := db.Where(models.Stock{Code: code}).FirstOrCreate(&stock).Error; err != nil {
			return fmt.Errorf("failed to populate stock '%s': %w", code, err)
		}
	}

	clock := models.MarketClock{ID: models.MarketClockID, LastUpdate: now}
	if err := db.FirstOrCreate(&clock, models.MarketClock{ID: models.MarketClockID}).Error; err != nil {
		return fmt.Errorf("failed to populate market clock: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema from scratch.
func Reset(db *gorm.DB, cfg *config.Config) error {
	if err := db.Migrator().DropTable(allModels...); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return AutoMigrate(db, cfg)
}
