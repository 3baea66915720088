package handlers

import (
	"net"
	"net/http"

	"gorm.io/gorm"

	"github.com/beedevservices/portal/internal/auth"
	"github.com/beedevservices/portal/internal/httpx"
	"github.com/beedevservices/portal/internal/models"
	"github.com/beedevservices/portal/internal/pdf"
	"github.com/beedevservices/portal/internal/services"
)

type ProposalHandler struct {
	db        *gorm.DB
	proposals *services.ProposalService
}

func NewProposalHandler(db *gorm.DB, proposals *services.ProposalService) *ProposalHandler {
	return &ProposalHandler{db: db, proposals: proposals}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// staffActor resolves the session user when they are internal staff.
func (h *ProposalHandler) staffActor(r *http.Request) *uint {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		return nil
	}
	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, uid).Error; err != nil {
		return nil
	}
	if !user.IsStaff() {
		return nil
	}
	return &uid
}

// View returns a proposal with snapshot children and the event trail.
func (h *ProposalHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	p, err := h.proposals.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Document returns the render-ready document model for a proposal. PDF
// rendering itself is an external collaborator fed from this shape.
func (h *ProposalHandler) Document(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	p, err := h.proposals.Get(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pdf.BuildProposalDocument(p))
}

// Link ensures and returns the signing URL.
func (h *ProposalHandler) Link(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	url, err := h.proposals.EnsureSigningLink(r.Context(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"signing_url": url})
}

// Send marks the proposal sent and delivers the signing link.
func (h *ProposalHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	p, err := h.proposals.MarkSent(r.Context(), userID, id)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// AddRecipient registers another delivery address.
func (h *ProposalHandler) AddRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	rec, err := h.proposals.AddRecipient(r.Context(), id, in.Name, in.Email)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

// SetCountersign flips the internal countersign requirement.
func (h *ProposalHandler) SetCountersign(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		Required bool `json:"required"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	p, err := h.proposals.SetCountersignRequired(r.Context(), userID, id, in.Required)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Countersign records the internal countersignature.
func (h *ProposalHandler) Countersign(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		Notes string `json:"notes"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	p, err := h.proposals.MarkCountersigned(r.Context(), userID, id, in.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// CountersignQueue lists proposals awaiting countersignature.
func (h *ProposalHandler) CountersignQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.proposals.CountersignQueue(r.Context())
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, queue)
}

// Comment appends a COMMENT event.
func (h *ProposalHandler) Comment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w)
		return
	}
	var in struct {
		Body string `json:"body"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	actor := h.staffActor(r)
	if err := h.proposals.Comment(r.Context(), id, actor, in.Body); err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// PublicView is the client-facing signing page lookup. A staff session
// viewing their own link is logged as a preview and leaves the client
// analytics untouched.
func (h *ProposalHandler) PublicView(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	p, err := h.proposals.ByToken(r.Context(), token)
	if err != nil {
		serviceError(w, err)
		return
	}
	actor := h.staffActor(r)
	if _, err := h.proposals.MarkViewed(r.Context(), p.ID, actor, clientIP(r), actor != nil); err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// PublicSign captures the client signature and returns the proposal with
// its freshly materialized deposit invoice.
func (h *ProposalHandler) PublicSign(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	p, err := h.proposals.ByToken(r.Context(), token)
	if err != nil {
		serviceError(w, err)
		return
	}
	var in struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Payload string `json:"payload"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	signed, invoice, err := h.proposals.MarkSigned(r.Context(), p.ID, services.SignatureInput{
		Name:    in.Name,
		Email:   in.Email,
		IP:      clientIP(r),
		Payload: in.Payload,
	})
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"proposal": signed, "invoice": invoice})
}

// PublicDecline lets the client close the proposal.
func (h *ProposalHandler) PublicDecline(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	p, err := h.proposals.ByToken(r.Context(), token)
	if err != nil {
		serviceError(w, err)
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if err := httpx.Decode(r, &in); err != nil {
		badRequest(w)
		return
	}
	declined, err := h.proposals.MarkDeclined(r.Context(), p.ID, nil, clientIP(r), in.Reason)
	if err != nil {
		serviceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, declined)
}
