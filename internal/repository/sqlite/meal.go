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

// MealRepo implements repository.MealRepository over the shared pool.
type MealRepo struct {
	conn *sql.DB
}

var _ repository.MealRepository = (*MealRepo)(nil)

// execer covers both *sql.DB and *sql.Tx so insertMeal can run inside the
// Promote transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertMeal writes a meal row, assigning ID and timestamps if unset.
// The meal ID may be pre-assigned by the caller (Promote does this so the
// API response and the row agree before the transaction commits).
func insertMeal(ctx context.Context, ex execer, meal *model.Meal) error {
	if meal.ID == "" {
		meal.ID = xid.New().String()
	}
	now := time.Now()
	meal.CreatedAt = now
	meal.UpdatedAt = now

	components, err := json.Marshal(meal.Components)
	if err != nil {
		return fmt.Errorf("sqlite: encoding meal components: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO meals (id, user_id, name, description, components,
		                    calories, protein, carbs, fat, consumed_on, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meal.ID,
		meal.UserID,
		meal.Name,
		meal.Description,
		string(components),
		meal.Totals.Calories,
		meal.Totals.Protein,
		meal.Totals.Carbs,
		meal.Totals.Fat,
		meal.ConsumedOn,
		meal.CreatedAt,
		meal.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating meal: %w", err)
	}
	return nil
}

const mealColumns = `id, user_id, name, description, components,
	calories, protein, carbs, fat, consumed_on, created_at, updated_at`

// GetByID retrieves a single meal by its ID.
func (r *MealRepo) GetByID(ctx context.Context, id string) (*model.Meal, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = ?`, id)
	meal, err := scanMeal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("meal", id)
		}
		return nil, fmt.Errorf("sqlite: getting meal %s: %w", id, err)
	}
	return meal, nil
}

// ListByUser returns a user's meals with pagination, newest first.
func (r *MealRepo) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Meal, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+mealColumns+`
		 FROM meals
		 WHERE user_id = ?
		 ORDER BY consumed_on DESC, created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing meals: %w", err)
	}
	defer rows.Close()

	return collectMeals(rows)
}

// ListByUserBetween returns meals whose consumed_on falls in [from, to].
// Dates are "2006-01-02" strings; lexicographic order matches calendar
// order for that format, so BETWEEN works directly.
func (r *MealRepo) ListByUserBetween(ctx context.Context, userID, from, to string) ([]model.Meal, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+mealColumns+`
		 FROM meals
		 WHERE user_id = ? AND consumed_on BETWEEN ? AND ?
		 ORDER BY consumed_on ASC, created_at ASC`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing meals between %s and %s: %w", from, to, err)
	}
	defer rows.Close()

	return collectMeals(rows)
}

// DistinctDates returns the distinct dates a user logged meals, newest first.
func (r *MealRepo) DistinctDates(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT DISTINCT consumed_on FROM meals WHERE user_id = ? ORDER BY consumed_on DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing meal dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("sqlite: scanning meal date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating meal dates: %w", err)
	}
	return dates, nil
}

// Delete removes a meal.
func (r *MealRepo) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting meal %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("meal", id)
	}
	return nil
}

func collectMeals(rows *sql.Rows) ([]model.Meal, error) {
	meals := []model.Meal{}
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning meal: %w", err)
		}
		meals = append(meals, *meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating meals: %w", err)
	}
	return meals, nil
}

func scanMeal(s scanner) (*model.Meal, error) {
	var (
		meal       model.Meal
		components string
	)
	err := s.Scan(
		&meal.ID,
		&meal.UserID,
		&meal.Name,
		&meal.Description,
		&components,
		&meal.Totals.Calories,
		&meal.Totals.Protein,
		&meal.Totals.Carbs,
		&meal.Totals.Fat,
		&meal.ConsumedOn,
		&meal.CreatedAt,
		&meal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(components), &meal.Components); err != nil {
		return nil, fmt.Errorf("decoding meal components: %w", err)
	}
	return &meal, nil
}
