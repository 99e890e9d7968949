package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/nutrilog/internal/apperror"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/repository"
)

const dateLayout = "2006-01-02"

// MealService serves saved meals and the aggregates derived from them.
type MealService struct {
	meals  repository.MealRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewMealService(meals repository.MealRepository, users repository.UserRepository, logger *slog.Logger) *MealService {
	return &MealService{meals: meals, users: users, logger: logger}
}

// List returns the user's meals with pagination, most recent day first.
func (s *MealService) List(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Meal, error) {
	meals, err := s.meals.ListByUser(ctx, userID, opts)
	if err != nil {
		s.logger.Error("failed to list meals", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing meals: %w", err)
	}
	return meals, nil
}

// Get returns one meal, enforcing ownership.
func (s *MealService) Get(ctx context.Context, userID, id string) (*model.Meal, error) {
	return s.ownedMeal(ctx, userID, id)
}

// Delete removes a saved meal. Aggregates recompute on the next read, so
// there is nothing else to clean up here.
func (s *MealService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.ownedMeal(ctx, userID, id); err != nil {
		return err
	}
	if err := s.meals.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("meal deleted", slog.String("id", id))
	return nil
}

// DailySummary sums one day's meals against the user's targets. A day with
// no meals is a valid summary with zero totals, not an error.
func (s *MealService) DailySummary(ctx context.Context, userID, date string) (*model.DailySummary, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	dateStr := day.Format(dateLayout)
	meals, err := s.meals.ListByUserBetween(ctx, userID, dateStr, dateStr)
	if err != nil {
		return nil, fmt.Errorf("loading meals for %s: %w", dateStr, err)
	}

	summary := &model.DailySummary{
		Date:      dateStr,
		Targets:   user.Targets,
		MealCount: len(meals),
	}
	for _, m := range meals {
		summary.Totals = summary.Totals.Add(m.Totals)
	}
	return summary, nil
}

// WeeklySummary aggregates the Monday-to-Sunday week containing the given
// date, one entry per day plus a grand total.
func (s *MealService) WeeklySummary(ctx context.Context, userID, date string) (*model.WeeklySummary, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	monday := startOfWeek(day)
	sunday := monday.AddDate(0, 0, 6)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	meals, err := s.meals.ListByUserBetween(ctx, userID, monday.Format(dateLayout), sunday.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("loading meals for week of %s: %w", monday.Format(dateLayout), err)
	}

	summary := &model.WeeklySummary{
		WeekStart: monday.Format(dateLayout),
		Days:      make([]model.DailySummary, 7),
	}
	byDate := make(map[string]int, 7)
	for i := range summary.Days {
		d := monday.AddDate(0, 0, i).Format(dateLayout)
		summary.Days[i] = model.DailySummary{Date: d, Targets: user.Targets}
		byDate[d] = i
	}
	for _, m := range meals {
		i, ok := byDate[m.ConsumedOn]
		if !ok {
			continue
		}
		summary.Days[i].Totals = summary.Days[i].Totals.Add(m.Totals)
		summary.Days[i].MealCount++
		summary.Totals = summary.Totals.Add(m.Totals)
	}
	return summary, nil
}

// Streak computes consecutive logging days ending today (or yesterday, so
// a streak isn't broken before the day is over), plus the longest run.
func (s *MealService) Streak(ctx context.Context, userID string, now time.Time) (*model.Streak, error) {
	dates, err := s.meals.DistinctDates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading logged dates: %w", err)
	}
	if len(dates) == 0 {
		return &model.Streak{}, nil
	}

	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return &model.Streak{}, nil
	}

	streak := &model.Streak{LastLogged: days[0].Format(dateLayout)}

	// Current streak: the newest date must be today or yesterday.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if gap := int(today.Sub(days[0]).Hours() / 24); gap <= 1 {
		streak.Current = 1
		for i := 1; i < len(days); i++ {
			if int(days[i-1].Sub(days[i]).Hours()/24) != 1 {
				break
			}
			streak.Current++
		}
	}

	// Longest streak across the whole history.
	run := 1
	streak.Longest = 1
	for i := 1; i < len(days); i++ {
		if int(days[i-1].Sub(days[i]).Hours()/24) == 1 {
			run++
		} else {
			run = 1
		}
		if run > streak.Longest {
			streak.Longest = run
		}
	}
	if streak.Current > streak.Longest {
		streak.Longest = streak.Current
	}
	return streak, nil
}

func (s *MealService) ownedMeal(ctx context.Context, userID, id string) (*model.Meal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "meal ID is required")
	}
	meal, err := s.meals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if meal.UserID != userID {
		return nil, apperror.Forbidden("meal belongs to another user")
	}
	return meal, nil
}

// parseDate accepts YYYY-MM-DD; an empty date means today.
func parseDate(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed("date", "date must be YYYY-MM-DD")
	}
	return t, nil
}

// startOfWeek returns the Monday of the week containing t.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
