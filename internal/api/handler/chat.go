package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/api/response"
	"github.com/txdxai/sophia/internal/orchestrator"
	"github.com/txdxai/sophia/internal/session"
)

// ChatService defines the interface the chat handler depends on.
type ChatService interface {
	HandleMessage(ctx context.Context, req orchestrator.Request) (orchestrator.Response, error)
}

// NewChatHandler returns an http.HandlerFunc for POST /chat.
func NewChatHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		var req struct {
			UserID   int64  `json:"userId"`
			Message  string `json:"message"`
			ThreadID string `json:"threadId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.UserID <= 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId is required", nil)
			return
		}

		resp, err := svc.HandleMessage(r.Context(), orchestrator.Request{
			CompanyID: companyID,
			UserID:    req.UserID,
			Message:   req.Message,
			ThreadID:  req.ThreadID,
			Auth:      mw.GetAuth(r),
		})
		if err != nil {
			switch {
			case errors.Is(err, orchestrator.ErrEmptyMessage):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "message is required", nil)
			case errors.Is(err, session.ErrThreadNotFound):
				response.Error(w, http.StatusNotFound, "THREAD_NOT_FOUND", "Thread not found", nil)
			default:
				slog.Error("chat failed", "error", err, "company_id", companyID)
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.JSON(w, resp)
	}
}
