// Package db owns connection bootstrap, schema migration, and reference
// data seeding.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/pricing"
)

// Options controls Connect behavior.
type Options struct {
	DSN   string
	Debug bool
	Seed  bool
}

// Connect opens the database, runs AutoMigrate over the full model list,
// and optionally seeds reference data. Postgres DSNs get a short retry
// loop; anything else is treated as a sqlite path (dev/tests).
func Connect(opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check environment configuration")
	}
	logLevel := logger.Silent
	if opts.Debug {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var conn *gorm.DB
	var err error
	if strings.HasPrefix(opts.DSN, "postgres://") || strings.Contains(opts.DSN, "host=") {
		for i := 0; i < 10; i++ {
			conn, err = gorm.Open(postgres.Open(opts.DSN), cfg)
			if err == nil {
				break
			}
			time.Sleep(2 * time.Second)
		}
	} else {
		conn, err = gorm.Open(sqlite.Open(opts.DSN), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if pingErr := conn.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	if opts.Seed {
		Seed(conn)
	}
	return conn, nil
}

// Migrate runs AutoMigrate over every portal model.
func Migrate(conn *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.User{}, &models.Company{}, &models.CompanyContact{},
		&models.JobRate{}, &models.BaseSetting{}, &models.Discount{}, &models.CostTier{}, &models.CatalogItem{},
		&models.ProposalDraft{}, &models.DraftItem{},
		&models.Proposal{}, &models.ProposalLineItem{}, &models.ProposalAppliedDiscount{},
		&models.ProposalRecipient{}, &models.ProposalEvent{},
		&models.Invoice{}, &models.InvoiceLineItem{}, &models.InvoiceAppliedDiscount{}, &models.Payment{},
		&models.Project{}, &models.AuditLog{},
	}
	for _, m := range modelsToMigrate {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Seed inserts baseline reference data when missing. Safe to run twice.
func Seed(conn *gorm.DB) {
	baseRates := []models.JobRate{
		{Code: "dev", Name: "Development", HourlyRate: dec("125.00"), IsActive: true, SortOrder: 1},
		{Code: "design", Name: "Design", HourlyRate: dec("95.00"), IsActive: true, SortOrder: 2},
		{Code: "pm", Name: "Project Management", HourlyRate: dec("85.00"), IsActive: true, SortOrder: 3},
	}
	for _, jr := range baseRates {
		var existing models.JobRate
		if err := conn.Where("code = ?", jr.Code).First(&existing).Error; err == gorm.ErrRecordNotFound {
			conn.Create(&jr)
		}
	}
	baseSettings := []models.BaseSetting{
		{Code: "none", Name: "No base fee", BaseRate: pricing.Zero2(), IsActive: true, SortOrder: 0},
		{Code: "vite-app", Name: "Vite app scaffold", BaseRate: dec("250.00"), IsActive: true, SortOrder: 1},
		{Code: "branding-kit", Name: "Branding kit", BaseRate: dec("150.00"), IsActive: true, SortOrder: 2},
	}
	for _, bs := range baseSettings {
		var existing models.BaseSetting
		if err := conn.Where("code = ?", bs.Code).First(&existing).Error; err == gorm.ErrRecordNotFound {
			conn.Create(&bs)
		}
	}
	tierMax := func(s string) *decimal.Decimal { d := dec(s); return &d }
	tiers := []models.CostTier{
		{Code: "tier-1", Label: "Tier 1", MinTotal: dec("0.00"), MaxTotal: tierMax("1250.00"), IsActive: true, SortOrder: 1},
		{Code: "tier-2", Label: "Tier 2", MinTotal: dec("1250.01"), MaxTotal: tierMax("3000.00"), IsActive: true, SortOrder: 2},
		{Code: "tier-3", Label: "Tier 3", MinTotal: dec("3000.01"), IsActive: true, SortOrder: 3},
	}
	for _, ct := range tiers {
		var existing models.CostTier
		if err := conn.Where("code = ?", ct.Code).First(&existing).Error; err == gorm.ErrRecordNotFound {
			conn.Create(&ct)
		}
	}
}
