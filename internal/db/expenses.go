package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"surfpass/internal/models"
)

const expenseColumns = `id, account_id, amount, description, category, recorded_by, photo_ref, recorded_at, amended_at, amended_by`

// ExpenseRepository has no delete: ledger rows are only appended or amended.
type ExpenseRepository struct {
	db *DB
}

func NewExpenseRepository(db *DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

type CreateExpenseParams struct {
	AccountID   string
	Amount      int64
	Description string
	Category    string
	RecordedBy  string
	PhotoRef    *string
}

func (r *ExpenseRepository) Create(ctx context.Context, p CreateExpenseParams) (*models.ExpenseEntry, error) {
	id, err := GenerateID("exp")
	if err != nil {
		return nil, fmt.Errorf("generating expense ID: %w", err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, account_id, amount, description, category, recorded_by, photo_ref, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.AccountID, p.Amount, p.Description, p.Category, p.RecordedBy, ptrToNullString(p.PhotoRef), now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating expense: %w", err)
	}

	return &models.ExpenseEntry{
		ID:          id,
		AccountID:   p.AccountID,
		Amount:      p.Amount,
		Description: p.Description,
		Category:    p.Category,
		RecordedBy:  p.RecordedBy,
		PhotoRef:    p.PhotoRef,
		RecordedAt:  now,
	}, nil
}

// Amend overwrites amount and description in place; account_id and
// recorded_at are never touched.
func (r *ExpenseRepository) Amend(ctx context.Context, id string, amount int64, description, actorID string) (*models.ExpenseEntry, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, description = ?, amended_at = ?, amended_by = ? WHERE id = ?`,
		amount, description, time.Now().UTC(), actorID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("amending expense: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *ExpenseRepository) FindByID(ctx context.Context, id string) (*models.ExpenseEntry, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying expense: %w", err)
	}
	return e, nil
}

func (r *ExpenseRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ExpenseEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE account_id = ? ORDER BY seq`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.ExpenseEntry, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expenses: %w", err)
	}
	return entries, nil
}

// Totals aggregates the ledger per account, ordered by total descending and
// then by the account's first entry (lowest seq) so earlier spenders win ties.
func (r *ExpenseRepository) Totals(ctx context.Context, limit int) ([]models.AccountTotal, error) {
	query := `SELECT e.account_id, COALESCE(a.full_name, ''), SUM(e.amount), COUNT(*), MIN(e.seq) AS first_seq
		FROM expenses e
		LEFT JOIN accounts a ON a.id = e.account_id
		GROUP BY e.account_id
		ORDER BY SUM(e.amount) DESC, first_seq ASC, e.account_id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying expense totals: %w", err)
	}
	defer rows.Close()

	totals := make([]models.AccountTotal, 0)
	for rows.Next() {
		var t models.AccountTotal
		if err := rows.Scan(&t.AccountID, &t.FullName, &t.Total, &t.EntryCount, &t.FirstSeq); err != nil {
			return nil, fmt.Errorf("scanning expense total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expense totals: %w", err)
	}
	return totals, nil
}

// SumForReferees returns the combined ledger total of every account referred by referrerID.
func (r *ExpenseRepository) SumForReferees(ctx context.Context, referrerID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(e.amount), 0) FROM expenses e
		 JOIN accounts a ON a.id = e.account_id
		 WHERE a.referred_by = ?`,
		referrerID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing referee expenses: %w", err)
	}
	return total, nil
}

func (r *ExpenseRepository) SumForAccount(ctx context.Context, accountID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE account_id = ?`, accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing account expenses: %w", err)
	}
	return total, nil
}

func scanExpense(row rowScanner) (*models.ExpenseEntry, error) {
	var e models.ExpenseEntry
	var photoRef, amendedBy sql.NullString
	var amendedAt sql.NullTime

	err := row.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Description, &e.Category, &e.RecordedBy,
		&photoRef, &e.RecordedAt, &amendedAt, &amendedBy)
	if err != nil {
		return nil, err
	}

	e.PhotoRef = nullStringToPtr(photoRef)
	e.AmendedBy = nullStringToPtr(amendedBy)
	e.AmendedAt = nullTimeToPtr(amendedAt)
	e.RecordedAt = e.RecordedAt.UTC()
	return &e, nil
}
