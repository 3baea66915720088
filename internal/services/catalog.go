package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/models"
)

// CatalogService reads and maintains pricing reference data. Reads return
// active rows only; edits are audited. Catalog rows are never referenced
// live by draft lines, which copy values at creation, so editing here
// never rewrites existing documents.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// ActiveJobRateByCode looks up an active hourly rate.
func (s *CatalogService) ActiveJobRateByCode(ctx context.Context, code string) (*models.JobRate, error) {
	var jr models.JobRate
	err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&jr).Error
	if err != nil {
		return nil, err
	}
	return &jr, nil
}

// ActiveBaseSettingByCode looks up an active base-fee addon.
func (s *CatalogService) ActiveBaseSettingByCode(ctx context.Context, code string) (*models.BaseSetting, error) {
	var bs models.BaseSetting
	err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&bs).Error
	if err != nil {
		return nil, err
	}
	return &bs, nil
}

// ActiveDiscountByCode looks up an active discount. Validity windows are
// checked by callers at application time, not here.
func (s *CatalogService) ActiveDiscountByCode(ctx context.Context, code string) (*models.Discount, error) {
	var d models.Discount
	err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ActiveCatalogItemByCode looks up an active catalog item with its rate
// and base fee loaded.
func (s *CatalogService) ActiveCatalogItemByCode(ctx context.Context, code string) (*models.CatalogItem, error) {
	var ci models.CatalogItem
	err := s.db.WithContext(ctx).
		Preload("JobRate").Preload("BaseSetting").
		Where("code = ? AND is_active = ?", code, true).
		First(&ci).Error
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

// ActiveCatalogItems lists the pickable presets in display order.
func (s *CatalogService) ActiveCatalogItems(ctx context.Context) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	err := s.db.WithContext(ctx).
		Preload("JobRate").Preload("BaseSetting").
		Where("is_active = ?", true).
		Order("sort_order, code").
		Find(&items).Error
	return items, err
}

// TierForAmount returns the first active tier whose inclusive interval
// contains amount, or nil when no tier matches.
func (s *CatalogService) TierForAmount(ctx context.Context, amount decimal.Decimal) (*models.CostTier, error) {
	return tierForAmount(s.db.WithContext(ctx), amount)
}

func tierForAmount(tx *gorm.DB, amount decimal.Decimal) (*models.CostTier, error) {
	var tiers []models.CostTier
	err := tx.Where("is_active = ?", true).Order("sort_order, min_total").Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	for i := range tiers {
		if tiers[i].Contains(amount) {
			return &tiers[i], nil
		}
	}
	return nil, nil
}

// SaveTier validates and persists a cost tier, recording an audit row.
func (s *CatalogService) SaveTier(ctx context.Context, actorID uint, tier *models.CostTier) error {
	if err := tier.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action := "update"
		if tier.ID == 0 {
			action = "create"
		}
		if err := tx.Save(tier).Error; err != nil {
			return err
		}
		return writeAudit(tx, actorID, "cost_tier", tier.ID, action, "", "", tierBoundsLabel(tier))
	})
}

func tierBoundsLabel(t *models.CostTier) string {
	if t.MaxTotal == nil {
		return fmt.Sprintf("[%s, )", t.MinTotal.StringFixed(2))
	}
	return fmt.Sprintf("[%s, %s]", t.MinTotal.StringFixed(2), t.MaxTotal.StringFixed(2))
}

// SaveJobRate persists an hourly rate, recording the rate change.
func (s *CatalogService) SaveJobRate(ctx context.Context, actorID uint, rate *models.JobRate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action := "update"
		oldVal := ""
		if rate.ID == 0 {
			action = "create"
		} else {
			var prev models.JobRate
			if err := tx.First(&prev, rate.ID).Error; err == nil {
				oldVal = prev.HourlyRate.StringFixed(2)
			}
		}
		if err := tx.Save(rate).Error; err != nil {
			return err
		}
		return writeAudit(tx, actorID, "job_rate", rate.ID, action, "hourly_rate", oldVal, rate.HourlyRate.StringFixed(2))
	})
}

// SaveCatalogItem persists a catalog preset, recording an audit row.
func (s *CatalogService) SaveCatalogItem(ctx context.Context, actorID uint, item *models.CatalogItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		action := "update"
		if item.ID == 0 {
			action = "create"
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return writeAudit(tx, actorID, "catalog_item", item.ID, action, "", "", item.Code)
	})
}
