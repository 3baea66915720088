package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	portaldb "github.com/beedevservices/portal/internal/db"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/notify"
	"github.com/beedevservices/portal/internal/policy"
	"github.com/beedevservices/portal/internal/services"
)

// signingFixture boots the stack and returns a mux with the public
// signing routes plus a proposal ready to sign.
func signingFixture(t *testing.T) (*http.ServeMux, string) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, portaldb.Migrate(gdb))
	portaldb.Seed(gdb)

	owner := models.User{Email: "owner@beedev.test", Role: models.RoleOwner, IsActive: true}
	require.NoError(t, gdb.Create(&owner).Error)
	company := models.Company{Name: "Acme Co", Slug: "acme-co", PrimaryEmail: "billing@acme.test"}
	require.NoError(t, gdb.Create(&company).Error)

	var devRate models.JobRate
	require.NoError(t, gdb.Where("code = ?", "dev").First(&devRate).Error)
	var noneBase models.BaseSetting
	require.NoError(t, gdb.Where("code = ?", "none").First(&noneBase).Error)
	item := models.CatalogItem{
		Code: "web-dev", Name: "Web development",
		JobRateID: devRate.ID, BaseSettingID: noneBase.ID,
		DefaultHours: decimal.NewFromInt(10), DefaultQuantity: decimal.NewFromInt(1),
		IsActive: true,
	}
	require.NoError(t, gdb.Create(&item).Error)

	log := zap.NewNop()
	g := policy.NewGate(gdb)
	invoices := services.NewInvoiceService(gdb, log)
	drafts := services.NewDraftService(gdb, g, log)
	proposals := services.NewProposalService(gdb, g, invoices,
		notify.NewLogMessenger(log), nil, log, "", 24*time.Hour)

	ctx := context.Background()
	draft, err := drafts.Create(ctx, owner.ID, services.DraftInput{CompanyID: company.ID, Title: "Site build"})
	require.NoError(t, err)
	_, err = drafts.AddItem(ctx, draft.ID, item.ID, nil, nil)
	require.NoError(t, err)
	_, err = drafts.Submit(ctx, owner.ID, draft.ID)
	require.NoError(t, err)
	_, err = drafts.Approve(ctx, owner.ID, draft.ID, "")
	require.NoError(t, err)
	proposal, err := drafts.ConvertToProposal(ctx, owner.ID, draft.ID)
	require.NoError(t, err)
	token, err := proposals.EnsureSigningLink(ctx, proposal.ID)
	require.NoError(t, err)

	ph := NewProposalHandler(gdb, proposals)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sign/{token}", ph.PublicView)
	mux.HandleFunc("POST /sign/{token}", ph.PublicSign)
	mux.HandleFunc("POST /sign/{token}/decline", ph.PublicDecline)
	return mux, token
}

func TestPublicSigningFlow(t *testing.T) {
	mux, token := signingFixture(t)

	// Client opens the link.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sign/"+token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount_total"`)
	// The token itself never leaks into the document body.
	assert.NotContains(t, rec.Body.String(), token)

	// Client signs.
	body := strings.NewReader(`{"name":"Dana Acme","email":"dana@acme.test","payload":"{\"agreed\":true}"}`)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign/"+token, body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"invoice"`)

	// Signing twice conflicts.
	body = strings.NewReader(`{"name":"Dana Acme","email":"dana@acme.test"}`)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign/"+token, body))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPublicSigningValidation(t *testing.T) {
	mux, token := signingFixture(t)

	// Missing signer identity maps to 422.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign/"+token,
		strings.NewReader(`{"name":"","email":"not-an-email"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Unknown tokens are rejected without existence leaks.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sign/bogus-token", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublicDecline(t *testing.T) {
	mux, token := signingFixture(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign/"+token+"/decline",
		strings.NewReader(`{"reason":"budget"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"DECLINED"`)

	// Declined proposals cannot be signed.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sign/"+token,
		strings.NewReader(`{"name":"Dana","email":"dana@acme.test"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
