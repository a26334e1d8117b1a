package db

import (
	"database/sql"
	"strings"
	"time"
)

// UserPrefs represents a user's browse filters for the bot layer.
// Destinations is "*" for all, otherwise a "|"-separated list.
type UserPrefs struct {
	UserID       int64
	Destinations string
	MinPrice     float64
	MaxPrice     float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SelectedDestinations returns the chosen destinations, or nil for "all"
func (p *UserPrefs) SelectedDestinations() []string {
	if p.Destinations == "" || p.Destinations == "*" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(p.Destinations, "|") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// GetUserPrefs retrieves user preferences, creating defaults if not exists
func (db *DB) GetUserPrefs(userID int64) (*UserPrefs, error) {
	var p UserPrefs
	err := db.conn.QueryRow(`
		SELECT user_id, destinations, min_price, max_price, created_at, updated_at
		FROM user_prefs
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Destinations, &p.MinPrice, &p.MaxPrice, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		p = UserPrefs{
			UserID:       userID,
			Destinations: "*",
			MinPrice:     0,
			MaxPrice:     1000000,
		}
		_, err = db.conn.Exec(`
			INSERT INTO user_prefs (user_id, destinations, min_price, max_price)
			VALUES ($1, $2, $3, $4)
		`, p.UserID, p.Destinations, p.MinPrice, p.MaxPrice)
		if err != nil {
			return nil, err
		}
		return &p, nil
	}

	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateUserDestinations replaces the user's destination selection
func (db *DB) UpdateUserDestinations(userID int64, destinations string) error {
	_, err := db.conn.Exec(`
		UPDATE user_prefs
		SET destinations = $2, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`, userID, destinations)
	return err
}

// UpdateUserPriceRange replaces the user's price bounds
func (db *DB) UpdateUserPriceRange(userID int64, minPrice, maxPrice float64) error {
	_, err := db.conn.Exec(`
		UPDATE user_prefs
		SET min_price = $2, max_price = $3, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`, userID, minPrice, maxPrice)
	return err
}
