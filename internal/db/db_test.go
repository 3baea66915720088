package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/models"
)

func TestSeedIdempotent(t *testing.T) {
	d, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(d); err != nil {
		t.Fatal(err)
	}
	Seed(d)
	Seed(d)

	var rateCount, tierCount int64
	d.Model(&models.JobRate{}).Count(&rateCount)
	d.Model(&models.CostTier{}).Count(&tierCount)
	if rateCount != 3 {
		t.Fatalf("expected 3 job rates, got %d", rateCount)
	}
	if tierCount != 3 {
		t.Fatalf("expected 3 cost tiers, got %d", tierCount)
	}

	// Baselines exist exactly once (idempotency).
	var c1 int64
	d.Model(&models.JobRate{}).Where("code = ?", "dev").Count(&c1)
	if c1 != 1 {
		t.Fatalf("dev rate duplicated or missing: %d", c1)
	}
}

func TestConnectSqlite(t *testing.T) {
	conn, err := Connect(Options{DSN: "file::memory:", Seed: true})
	if err != nil {
		t.Fatal(err)
	}
	var tierCount int64
	conn.Model(&models.CostTier{}).Count(&tierCount)
	if tierCount == 0 {
		t.Fatal("seed did not run")
	}
}
