package main

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/auth"
	"github.com/beedevservices/portal/internal/handlers"
	"github.com/beedevservices/portal/internal/services"
)

// App is the portal's HTTP surface: a mux over the JSON handlers with
// the session middleware applied globally.
type App struct {
	mux *http.ServeMux
	db  *gorm.DB
}

// Services groups the workflow services built at startup.
type Services struct {
	Catalog   *services.CatalogService
	Drafts    *services.DraftService
	Proposals *services.ProposalService
	Invoices  *services.InvoiceService
	Projects  *services.ProjectService
}

// Handlers groups the constructed handlers the routes are built from.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Catalog   *handlers.CatalogHandler
	Drafts    *handlers.DraftHandler
	Proposals *handlers.ProposalHandler
	Invoices  *handlers.InvoiceHandler
	Projects  *handlers.ProjectHandler
}

// NewHandlers wires the handler layer from the services.
func NewHandlers(db *gorm.DB, svc *Services) *Handlers {
	return &Handlers{
		Auth:      handlers.NewAuthHandler(db),
		Catalog:   handlers.NewCatalogHandler(svc.Catalog),
		Drafts:    handlers.NewDraftHandler(svc.Drafts),
		Proposals: handlers.NewProposalHandler(db, svc.Proposals),
		Invoices:  handlers.NewInvoiceHandler(svc.Invoices),
		Projects:  handlers.NewProjectHandler(svc.Projects),
	}
}

// NewApp builds the application handler with all routes configured.
func NewApp(db *gorm.DB, h *Handlers) *App {
	app := &App{mux: http.NewServeMux(), db: db}
	app.setupRoutes(h)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(a.mux).ServeHTTP(w, r)
}

func (a *App) setupRoutes(h *Handlers) {
	// Public: session, signing links, client invoice views.
	a.mux.HandleFunc("POST /login", h.Auth.Login)
	a.mux.HandleFunc("POST /logout", h.Auth.Logout)
	a.mux.HandleFunc("GET /sign/{token}", h.Proposals.PublicView)
	a.mux.HandleFunc("POST /sign/{token}", h.Proposals.PublicSign)
	a.mux.HandleFunc("POST /sign/{token}/decline", h.Proposals.PublicDecline)
	a.mux.HandleFunc("GET /invoices/view/{token}", h.Invoices.PublicView)

	// Authenticated staff API. Capability checks for workflow transitions
	// happen inside the services; routing only requires a session.
	requireAuth := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireAuth(fn)
	}
	a.mux.Handle("GET /me", requireAuth(h.Auth.Me))
	a.mux.Handle("POST /me/password", requireAuth(h.Auth.SetPassword))

	a.mux.Handle("GET /catalog/items", requireAuth(h.Catalog.Items))

	a.mux.Handle("POST /drafts", requireAuth(h.Drafts.Create))
	a.mux.Handle("GET /drafts/{id}", requireAuth(h.Drafts.View))
	a.mux.Handle("POST /drafts/{id}/items", requireAuth(h.Drafts.AddItem))
	a.mux.Handle("POST /drafts/{id}/items/update", requireAuth(h.Drafts.UpdateItem))
	a.mux.Handle("POST /drafts/{id}/items/remove", requireAuth(h.Drafts.RemoveItem))
	a.mux.Handle("POST /drafts/{id}/discount", requireAuth(h.Drafts.SetDiscount))
	a.mux.Handle("POST /drafts/{id}/deposit", requireAuth(h.Drafts.SetDeposit))
	a.mux.Handle("POST /drafts/{id}/tax", requireAuth(h.Drafts.SetTax))
	a.mux.Handle("POST /drafts/{id}/estimate", requireAuth(h.Drafts.PinEstimate))
	a.mux.Handle("POST /drafts/{id}/submit", requireAuth(h.Drafts.Submit))
	a.mux.Handle("POST /drafts/{id}/approve", requireAuth(h.Drafts.Approve))
	a.mux.Handle("POST /drafts/{id}/reject", requireAuth(h.Drafts.Reject))
	a.mux.Handle("POST /drafts/{id}/convert", requireAuth(h.Drafts.Convert))

	a.mux.Handle("GET /proposals/{id}", requireAuth(h.Proposals.View))
	a.mux.Handle("GET /proposals/{id}/document", requireAuth(h.Proposals.Document))
	a.mux.Handle("POST /proposals/{id}/link", requireAuth(h.Proposals.Link))
	a.mux.Handle("POST /proposals/{id}/send", requireAuth(h.Proposals.Send))
	a.mux.Handle("POST /proposals/{id}/recipients", requireAuth(h.Proposals.AddRecipient))
	a.mux.Handle("POST /proposals/{id}/countersign-required", requireAuth(h.Proposals.SetCountersign))
	a.mux.Handle("POST /proposals/{id}/countersign", requireAuth(h.Proposals.Countersign))
	a.mux.Handle("POST /proposals/{id}/comments", requireAuth(h.Proposals.Comment))
	a.mux.Handle("GET /proposals/countersign-queue", requireAuth(h.Proposals.CountersignQueue))
	a.mux.Handle("POST /proposals/{id}/invoice", requireAuth(h.Invoices.FromProposal))
	a.mux.Handle("POST /proposals/{id}/project", requireAuth(h.Projects.FromProposal))

	a.mux.Handle("GET /invoices/{id}", requireAuth(h.Invoices.View))
	a.mux.Handle("POST /invoices/{id}/payments", requireAuth(h.Invoices.RecordPayment))
	a.mux.Handle("POST /invoices/{id}/send", requireAuth(h.Invoices.Send))
	a.mux.Handle("POST /invoices/{id}/void", requireAuth(h.Invoices.Void))

	a.mux.Handle("GET /projects/{id}", requireAuth(h.Projects.View))
}
