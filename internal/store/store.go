package store

import (
	"context"
	"errors"

	"github.com/txdxai/sophia/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateEscalation(ctx context.Context, rec *models.EscalationRecord) error
	ListEscalations(ctx context.Context, filter EscalationFilter) ([]*models.EscalationRecord, int, error)
	GetEscalation(ctx context.Context, companyID int64, ticketID string) (*models.EscalationRecord, error)
}

// EscalationFilter scopes a ledger listing to one company.
type EscalationFilter struct {
	CompanyID int64
	Severity  models.Severity
	Degraded  *bool
	Page      int
	Limit     int
}
