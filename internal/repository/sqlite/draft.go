package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/repository"
)

// DraftRepo implements repository.DraftRepository over the shared pool.
type DraftRepo struct {
	conn *sql.DB
}

// Compile-time check that *DraftRepo implements the interface.
// `var _ X = (*Y)(nil)` fails the build immediately if a method is missing,
// instead of at the first call site that passes the repo as the interface.
var _ repository.DraftRepository = (*DraftRepo)(nil)

// Create inserts a new draft, assigning its server-issued ID and creation
// timestamp. xid gives 20-char, URL-safe IDs that sort by creation time.
func (r *DraftRepo) Create(ctx context.Context, draft *model.Draft) error {
	draft.ID = xid.New().String()
	draft.CreatedAt = time.Now().Unix()
	if draft.Status == "" {
		draft.Status = model.StatusPending
	}

	resultJSON, err := marshalResult(draft.Result)
	if err != nil {
		return err
	}

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO drafts (id, user_id, description, status, result, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		draft.ID,
		draft.UserID,
		draft.Description,
		string(draft.Status),
		resultJSON,
		draft.ErrorMessage,
		draft.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating draft: %w", err)
	}
	return nil
}

// GetByID retrieves a single draft. sql.ErrNoRows becomes the domain's
// NotFound so handlers can map it to 404 without knowing about SQL.
func (r *DraftRepo) GetByID(ctx context.Context, id string) (*model.Draft, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT id, user_id, description, status, result, error_message, created_at
		 FROM drafts
		 WHERE id = ?`,
		id,
	)
	draft, err := scanDraft(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("draft", id)
		}
		return nil, fmt.Errorf("sqlite: getting draft %s: %w", id, err)
	}
	return draft, nil
}

// ListByUser returns all of a user's drafts, newest first. Drafts are few
// (they exist only until saved or discarded), so no pagination.
func (r *DraftRepo) ListByUser(ctx context.Context, userID string) ([]model.Draft, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, user_id, description, status, result, error_message, created_at
		 FROM drafts
		 WHERE user_id = ?
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing drafts: %w", err)
	}
	defer rows.Close()

	drafts := []model.Draft{}
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning draft: %w", err)
		}
		drafts = append(drafts, *draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating drafts: %w", err)
	}
	return drafts, nil
}

// Update writes the draft's mutable fields (status, result, error message).
// ID, user, description and created_at never change after Create.
func (r *DraftRepo) Update(ctx context.Context, draft *model.Draft) error {
	resultJSON, err := marshalResult(draft.Result)
	if err != nil {
		return err
	}

	res, err := r.conn.ExecContext(ctx,
		`UPDATE drafts SET status = ?, result = ?, error_message = ? WHERE id = ?`,
		string(draft.Status),
		resultJSON,
		draft.ErrorMessage,
		draft.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating draft %s: %w", draft.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("draft", draft.ID)
	}
	return nil
}

// Delete removes a draft.
func (r *DraftRepo) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting draft %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("draft", id)
	}
	return nil
}

// Promote inserts the meal and deletes the draft in one transaction.
// If either statement fails the whole save rolls back, so a draft can
// never be lost without its meal existing (or vice versa).
func (r *DraftRepo) Promote(ctx context.Context, draft *model.Draft, meal *model.Meal) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning promote tx: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback()

	if err := insertMeal(ctx, tx, meal); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, draft.ID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting promoted draft %s: %w", draft.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("draft", draft.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing promote: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(s scanner) (*model.Draft, error) {
	var (
		draft      model.Draft
		status     string
		resultJSON sql.NullString
	)
	err := s.Scan(
		&draft.ID,
		&draft.UserID,
		&draft.Description,
		&status,
		&resultJSON,
		&draft.ErrorMessage,
		&draft.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	draft.Status = model.Status(status)

	if resultJSON.Valid && resultJSON.String != "" {
		var result model.Result
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decoding draft result: %w", err)
		}
		draft.Result = &result
	}
	return &draft, nil
}

// marshalResult serialises the result payload for the TEXT column.
// A nil result maps to SQL NULL, matching the "no payload while pending"
// invariant.
func marshalResult(r *model.Result) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding draft result: %w", err)
	}
	return string(b), nil
}
