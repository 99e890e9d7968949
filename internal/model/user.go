package model

import "time"

// User represents a registered account.
//
// Accounts come from two places: email/password registration, or
// Google sign-in. For Google accounts, PasswordHash is empty and GoogleID
// holds Google's stable subject identifier. We still generate our own
// internal string ID (xid) so our primary keys never depend on a
// third-party's numbering scheme.
//
// PasswordHash is tagged json:"-" so it can never leak into an API
// response, no matter which handler serialises the struct.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Email        string    `json:"email"        db:"email"`
	Name         string    `json:"name"         db:"name"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	GoogleID     string    `json:"-"            db:"google_id"` // empty for password accounts
	Targets      Nutrients `json:"targets"`                     // daily nutrient targets
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

// DefaultTargets are applied to new accounts until the user sets their own.
var DefaultTargets = Nutrients{
	Calories: 2000,
	Protein:  100,
	Carbs:    250,
	Fat:      70,
}
