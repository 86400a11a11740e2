package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/api/response"
	"github.com/txdxai/sophia/internal/backend"
	"github.com/txdxai/sophia/internal/store"
	"github.com/txdxai/sophia/pkg/models"
)

// EscalationLedger is the read side of the escalation store.
type EscalationLedger interface {
	ListEscalations(ctx context.Context, filter store.EscalationFilter) ([]*models.EscalationRecord, int, error)
	GetEscalation(ctx context.Context, companyID int64, ticketID string) (*models.EscalationRecord, error)
}

// TicketTracker checks and cancels tickets with the ticket backend.
type TicketTracker interface {
	Status(ctx context.Context, auth models.AuthContext, ticketID string) (backend.TicketState, error)
	Cancel(ctx context.Context, auth models.AuthContext, ticketID string) (backend.TicketState, error)
}

// TicketStatusUnknown is reported when the ticket backend cannot be reached.
const TicketStatusUnknown = "unknown"

// NewListEscalationsHandler returns an http.HandlerFunc for GET /escalations.
func NewListEscalationsHandler(ledger EscalationLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		q := r.URL.Query()
		filter := store.EscalationFilter{CompanyID: companyID}

		if sev := q.Get("severity"); sev != "" {
			if !models.ValidSeverity(sev) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"severity must be one of low, medium, high, critical", nil)
				return
			}
			filter.Severity = models.Severity(sev)
		}
		if d := q.Get("degraded"); d != "" {
			degraded, err := strconv.ParseBool(d)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "degraded must be true or false", nil)
				return
			}
			filter.Degraded = &degraded
		}

		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		meta := response.Page(page, limit, 0)
		filter.Page, filter.Limit = meta.Page, meta.Limit

		records, total, err := ledger.ListEscalations(r.Context(), filter)
		if err != nil {
			slog.Error("list escalations failed", "error", err, "company_id", companyID)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list escalations", nil)
			return
		}

		response.Collection(w, records, response.Page(meta.Page, meta.Limit, total))
	}
}

// NewGetEscalationHandler returns an http.HandlerFunc for GET /escalations/{ticketID}.
// The ledger record is returned with the ticket's live status.
func NewGetEscalationHandler(ledger EscalationLedger, tracker TicketTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		rec, ok := lookupEscalation(w, r, ledger, companyID)
		if !ok {
			return
		}

		state := backend.TicketState{TicketID: rec.TicketID, Status: TicketStatusUnknown}
		if !rec.Degraded {
			st, err := tracker.Status(r.Context(), mw.GetAuth(r), rec.TicketID)
			if err != nil {
				slog.Warn("ticket status unavailable", "error", err, "ticket_id", rec.TicketID)
			} else {
				state = st
			}
		}

		response.JSON(w, map[string]any{
			"escalation": rec,
			"status":     state,
		})
	}
}

// NewCancelEscalationHandler returns an http.HandlerFunc for POST /escalations/{ticketID}/cancel.
func NewCancelEscalationHandler(ledger EscalationLedger, tracker TicketTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		rec, ok := lookupEscalation(w, r, ledger, companyID)
		if !ok {
			return
		}
		if rec.Degraded {
			response.Error(w, http.StatusConflict, "TICKET_NOT_SUBMITTED",
				"Ticket was recorded locally and never reached the ticket backend", nil)
			return
		}

		st, err := tracker.Cancel(r.Context(), mw.GetAuth(r), rec.TicketID)
		if err != nil {
			slog.Error("cancel ticket failed", "error", err, "ticket_id", rec.TicketID)
			response.Error(w, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "Ticket backend unavailable", nil)
			return
		}

		response.JSON(w, st)
	}
}

func lookupEscalation(w http.ResponseWriter, r *http.Request, ledger EscalationLedger, companyID int64) (*models.EscalationRecord, bool) {
	rec, err := ledger.GetEscalation(r.Context(), companyID, chi.URLParam(r, "ticketID"))
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "ESCALATION_NOT_FOUND", "Escalation not found", nil)
		return nil, false
	}
	if err != nil {
		slog.Error("get escalation failed", "error", err, "company_id", companyID)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load escalation", nil)
		return nil, false
	}
	return rec, true
}
