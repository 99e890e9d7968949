package model

import "time"

// Meal is a permanent record created by saving a completed draft.
// Unlike drafts, meals never change status — they are the settled truth
// that daily/weekly summaries and the streak are computed from.
type Meal struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Name        string      `json:"name"`
	Description string      `json:"description"` // the original free-text input, kept for display
	Components  []Component `json:"components"`
	Totals      Nutrients   `json:"totals"`
	ConsumedOn  string      `json:"consumedOn"` // calendar date, "2006-01-02"
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// DailySummary aggregates all meals logged on one calendar date.
type DailySummary struct {
	Date      string    `json:"date"` // "2006-01-02"
	Totals    Nutrients `json:"totals"`
	Targets   Nutrients `json:"targets"`
	MealCount int       `json:"mealCount"`
}

// WeeklySummary aggregates a Monday-to-Sunday week.
type WeeklySummary struct {
	WeekStart string         `json:"weekStart"` // Monday, "2006-01-02"
	Days      []DailySummary `json:"days"`      // always 7 entries, Mon..Sun
	Totals    Nutrients      `json:"totals"`
}

// Streak tracks consecutive days with at least one logged meal.
type Streak struct {
	Current    int    `json:"current"`
	Longest    int    `json:"longest"`
	LastLogged string `json:"lastLogged"` // "2006-01-02", empty if never logged
}
