package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/txdxai/sophia/internal/api/middleware"
	"github.com/txdxai/sophia/internal/api/response"
	"github.com/txdxai/sophia/internal/session"
	"github.com/txdxai/sophia/pkg/models"
)

// ThreadService exposes company-scoped conversation history.
type ThreadService interface {
	Thread(companyID int64, threadID string) (models.Thread, error)
	DeleteThread(companyID int64, threadID string) error
	Threads(companyID int64) []string
}

// NewListThreadsHandler returns an http.HandlerFunc for GET /threads.
func NewListThreadsHandler(svc ThreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		ids := svc.Threads(companyID)
		if ids == nil {
			ids = []string{}
		}
		response.JSON(w, map[string]any{
			"companyId": companyID,
			"threadIds": ids,
		})
	}
}

// NewGetThreadHandler returns an http.HandlerFunc for GET /threads/{threadID}.
func NewGetThreadHandler(svc ThreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		th, err := svc.Thread(companyID, chi.URLParam(r, "threadID"))
		if err != nil {
			writeThreadError(w, err)
			return
		}

		response.JSON(w, th)
	}
}

// NewDeleteThreadHandler returns an http.HandlerFunc for DELETE /threads/{threadID}.
func NewDeleteThreadHandler(svc ThreadService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, ok := mw.GetCompanyID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing company", nil)
			return
		}

		threadID := chi.URLParam(r, "threadID")
		if err := svc.DeleteThread(companyID, threadID); err != nil {
			writeThreadError(w, err)
			return
		}

		response.JSON(w, map[string]string{
			"message":  "Thread cleared successfully",
			"threadId": threadID,
		})
	}
}

func writeThreadError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrThreadNotFound) {
		response.Error(w, http.StatusNotFound, "THREAD_NOT_FOUND", "Thread not found", nil)
		return
	}
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}
