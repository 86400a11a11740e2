package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/txdxai/sophia/pkg/models"
)

const escalationColumns = `id, ticket_id, company_id, user_id, thread_id, action_type, severity,
	subject, description, parameters, degraded, created_at`

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateEscalation(ctx context.Context, rec *models.EscalationRecord) error {
	params := rec.Parameters
	if params == nil {
		params = map[string]any{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO escalations (`+escalationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.TicketID, rec.CompanyID, rec.UserID, rec.ThreadID, rec.ActionType,
		string(rec.Severity), rec.Subject, rec.Description, params, rec.Degraded, rec.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create escalation: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEscalations(ctx context.Context, filter EscalationFilter) ([]*models.EscalationRecord, int, error) {
	conditions := []string{"company_id = $1"}
	args := []any{filter.CompanyID}
	argIdx := 2

	if filter.Severity != "" {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIdx))
		args = append(args, string(filter.Severity))
		argIdx++
	}
	if filter.Degraded != nil {
		conditions = append(conditions, fmt.Sprintf("degraded = $%d", argIdx))
		args = append(args, *filter.Degraded)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM escalations WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count escalations: %w", err)
	}

	limit, offset := normalizePage(filter.Page, filter.Limit)

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM escalations WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		escalationColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	records := []*models.EscalationRecord{}
	for rows.Next() {
		rec, err := scanEscalation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan escalation: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (s *PostgresStore) GetEscalation(ctx context.Context, companyID int64, ticketID string) (*models.EscalationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+escalationColumns+` FROM escalations WHERE company_id = $1 AND ticket_id = $2`,
		companyID, ticketID)
	rec, err := scanEscalation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation: %w", err)
	}
	return rec, nil
}

func scanEscalation(row pgx.Row) (*models.EscalationRecord, error) {
	var (
		rec      models.EscalationRecord
		severity string
	)
	if err := row.Scan(&rec.ID, &rec.TicketID, &rec.CompanyID, &rec.UserID, &rec.ThreadID,
		&rec.ActionType, &severity, &rec.Subject, &rec.Description, &rec.Parameters,
		&rec.Degraded, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Severity = models.Severity(severity)
	return &rec, nil
}

// normalizePage clamps limit to [1,100] (default 20) and page to >= 1.
func normalizePage(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
