package db

import (
	"fmt"
)

// SaveFlight bookmarks a stored flight for a user. Saving the same
// flight twice is a no-op.
func (db *DB) SaveFlight(userID int64, key string) error {
	_, err := db.conn.Exec(`
		INSERT INTO saved_flights (user_id, flight_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id, flight_key) DO NOTHING
	`, userID, key)
	if err != nil {
		return fmt.Errorf("failed to save flight %s for user %d: %w", key, userID, err)
	}
	return nil
}

// UnsaveFlight removes a user's bookmark
func (db *DB) UnsaveFlight(userID int64, key string) error {
	_, err := db.conn.Exec(`
		DELETE FROM saved_flights
		WHERE user_id = $1 AND flight_key = $2
	`, userID, key)
	if err != nil {
		return fmt.Errorf("failed to unsave flight %s for user %d: %w", key, userID, err)
	}
	return nil
}

// ListSaved returns a user's saved flights. Flight rows are never
// deleted, so a bookmark keeps working after the offer goes stale.
func (db *DB) ListSaved(userID int64) ([]Flight, error) {
	return db.queryFlights(`
		SELECT `+flightColumns+` FROM flights
		WHERE flight_key IN (SELECT flight_key FROM saved_flights WHERE user_id = $1)
		ORDER BY go_date, destination
	`, userID)
}
