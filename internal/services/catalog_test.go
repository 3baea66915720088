package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beedevservices/portal/internal/apperr"
	"github.com/beedevservices/portal/internal/models"
)

func TestActiveLookupsByCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	jr, err := env.catalog.ActiveJobRateByCode(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "125.00", jr.HourlyRate.StringFixed(2))

	bs, err := env.catalog.ActiveBaseSettingByCode(ctx, "vite-app")
	require.NoError(t, err)
	assert.Equal(t, "250.00", bs.BaseRate.StringFixed(2))

	ci, err := env.catalog.ActiveCatalogItemByCode(ctx, "web-dev")
	require.NoError(t, err)
	assert.Equal(t, "125.00", ci.JobRate.HourlyRate.StringFixed(2))

	// Deactivated rows disappear from lookups.
	require.NoError(t, env.db.Model(&models.JobRate{}).
		Where("code = ?", "dev").Update("is_active", false).Error)
	_, err = env.catalog.ActiveJobRateByCode(ctx, "dev")
	require.Error(t, err)
}

func TestTierForAmountBoundaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		amount string
		want   string // tier code, "" for none
	}{
		{"0.00", "tier-1"},
		{"1250.00", "tier-1"}, // inclusive upper bound
		{"1250.01", "tier-2"},
		{"3000.00", "tier-2"},
		{"3000.01", "tier-3"},
		{"999999.99", "tier-3"}, // open-ended top tier
		{"-0.01", ""},
	}
	for _, tc := range cases {
		tier, err := env.catalog.TierForAmount(ctx, dec(t, tc.amount))
		require.NoError(t, err, tc.amount)
		if tc.want == "" {
			assert.Nil(t, tier, tc.amount)
			continue
		}
		require.NotNil(t, tier, tc.amount)
		assert.Equal(t, tc.want, tier.Code, tc.amount)
	}
}

func TestSaveTierValidatesBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	max := dec(t, "10.00")
	bad := models.CostTier{Code: "bad", Label: "Bad", MinTotal: dec(t, "20.00"), MaxTotal: &max}
	err := env.catalog.SaveTier(ctx, env.owner.ID, &bad)
	require.True(t, apperr.IsValidation(err))

	good := models.CostTier{Code: "tier-4", Label: "Tier 4", MinTotal: dec(t, "5000.00"), IsActive: true, SortOrder: 4}
	require.NoError(t, env.catalog.SaveTier(ctx, env.owner.ID, &good))

	var audit models.AuditLog
	require.NoError(t, env.db.
		Where("entity_type = ? AND entity_id = ?", "cost_tier", good.ID).
		First(&audit).Error)
	assert.Equal(t, "create", audit.Action)
	assert.Equal(t, env.owner.ID, audit.UserID)
}
