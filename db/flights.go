package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flight-deals-bot/models"
)

// Flight represents a persisted offer plus bookkeeping
type Flight struct {
	Key       string
	Offer     models.Offer
	FirstSeen time.Time
	LastSeen  time.Time
}

const flightColumns = `flight_key, name, destination, origin, provider, link,
	price, currency, go_date, go_depart, go_arrive,
	back_date, back_depart, back_arrive, seats, item_id, sub_item_id,
	first_seen, last_seen`

func scanFlight(row interface{ Scan(...any) error }) (*Flight, error) {
	var f Flight
	var price sql.NullFloat64
	var seats sql.NullInt64

	err := row.Scan(
		&f.Key, &f.Offer.Name, &f.Offer.Destination, &f.Offer.Origin,
		&f.Offer.Provider, &f.Offer.Link,
		&price, &f.Offer.Currency,
		&f.Offer.GoDate, &f.Offer.GoDepart, &f.Offer.GoArrive,
		&f.Offer.BackDate, &f.Offer.BackDepart, &f.Offer.BackArrive,
		&seats, &f.Offer.ItemID, &f.Offer.SubItemID,
		&f.FirstSeen, &f.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		f.Offer.Amount = &price.Float64
	}
	if seats.Valid {
		n := int(seats.Int64)
		f.Offer.Seats = &n
	}
	return &f, nil
}

func nullAmount(o *models.Offer) sql.NullFloat64 {
	if o.Amount == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *o.Amount, Valid: true}
}

func nullSeats(o *models.Offer) sql.NullInt64 {
	if o.Seats == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*o.Seats), Valid: true}
}

// Tx wraps one reconciliation transaction. All writes of a cycle go
// through a single Tx so a mid-batch failure rolls back cleanly.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByKey returns the persisted flight for an identity key, or nil
// when the key has never been seen.
func (t *Tx) FindByKey(key string) (*Flight, error) {
	row := t.tx.QueryRow(`SELECT `+flightColumns+` FROM flights WHERE flight_key = $1`, key)
	f, err := scanFlight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query flight %s: %w", key, err)
	}
	return f, nil
}

// Insert stores a first-seen offer
func (t *Tx) Insert(key string, offer *models.Offer, seen time.Time) error {
	_, err := t.tx.Exec(`
		INSERT INTO flights (`+flightColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		key, offer.Name, offer.Destination, offer.Origin, offer.Provider, offer.Link,
		nullAmount(offer), offer.Currency,
		offer.GoDate, offer.GoDepart, offer.GoArrive,
		offer.BackDate, offer.BackDepart, offer.BackArrive,
		nullSeats(offer), offer.ItemID, offer.SubItemID,
		seen, seen,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flight %s: %w", key, err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing record and
// refreshes last_seen. first_seen is never touched.
func (t *Tx) Update(key string, offer *models.Offer, seen time.Time) error {
	_, err := t.tx.Exec(`
		UPDATE flights
		SET name = $2, origin = $3, provider = $4, link = $5,
		    price = $6, currency = $7,
		    go_depart = $8, go_arrive = $9, back_depart = $10, back_arrive = $11,
		    seats = $12, item_id = $13, sub_item_id = $14, last_seen = $15
		WHERE flight_key = $1
	`,
		key, offer.Name, offer.Origin, offer.Provider, offer.Link,
		nullAmount(offer), offer.Currency,
		offer.GoDepart, offer.GoArrive, offer.BackDepart, offer.BackArrive,
		nullSeats(offer), offer.ItemID, offer.SubItemID,
		seen,
	)
	if err != nil {
		return fmt.Errorf("failed to update flight %s: %w", key, err)
	}
	return nil
}

// TouchLastSeen refreshes last_seen for an unchanged record
func (t *Tx) TouchLastSeen(key string, seen time.Time) error {
	_, err := t.tx.Exec(`UPDATE flights SET last_seen = $2 WHERE flight_key = $1`, key, seen)
	if err != nil {
		return fmt.Errorf("failed to touch flight %s: %w", key, err)
	}
	return nil
}

// --- Read API (consumed by the bot layer) ---

// LatestSeen returns the timestamp of the most recent successful cycle,
// or the zero time when nothing has ever been stored.
func (db *DB) LatestSeen() (time.Time, error) {
	var ts sql.NullTime
	err := db.conn.QueryRow(`SELECT MAX(last_seen) FROM flights`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest seen: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// ListCurrent returns the offers observed in the most recent cycle,
// ordered by outbound date.
func (db *DB) ListCurrent() ([]Flight, error) {
	return db.queryFlights(`
		SELECT ` + flightColumns + ` FROM flights
		WHERE last_seen = (SELECT MAX(last_seen) FROM flights)
		ORDER BY go_date, destination
	`)
}

// ListCurrentByDestination returns the current offers for one destination
func (db *DB) ListCurrentByDestination(dest string) ([]Flight, error) {
	return db.queryFlights(`
		SELECT `+flightColumns+` FROM flights
		WHERE destination = $1
		  AND last_seen = (SELECT MAX(last_seen) FROM flights)
		ORDER BY go_date
	`, dest)
}

// FindByKey looks up one record outside any transaction
func (db *DB) FindByKey(key string) (*Flight, error) {
	row := db.conn.QueryRow(`SELECT `+flightColumns+` FROM flights WHERE flight_key = $1`, key)
	f, err := scanFlight(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query flight %s: %w", key, err)
	}
	return f, nil
}

// DistinctDestinations returns every destination ever stored, including
// ones no longer listed upstream.
func (db *DB) DistinctDestinations() ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT destination FROM flights
		WHERE TRIM(destination) <> ''
		ORDER BY destination
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query destinations: %w", err)
	}
	defer rows.Close()

	var dests []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	return dests, rows.Err()
}

// PricePoint is one distinct (amount, currency) pair in storage
type PricePoint struct {
	Amount   float64
	Currency string
}

// DistinctPrices returns every distinct known price, never converted
// between currencies.
func (db *DB) DistinctPrices() ([]PricePoint, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT price, currency FROM flights
		WHERE price IS NOT NULL
		ORDER BY currency, price
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var prices []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Amount, &p.Currency); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// DestinationCount pairs a destination with its current offer count
type DestinationCount struct {
	Destination string
	Count       int
}

// DestinationCounts returns current offers grouped per destination,
// busiest first.
func (db *DB) DestinationCounts() ([]DestinationCount, error) {
	rows, err := db.conn.Query(`
		SELECT destination, COUNT(*) AS cnt FROM flights
		WHERE last_seen = (SELECT MAX(last_seen) FROM flights)
		GROUP BY destination
		ORDER BY cnt DESC, destination
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query destination counts: %w", err)
	}
	defer rows.Close()

	var counts []DestinationCount
	for rows.Next() {
		var c DestinationCount
		if err := rows.Scan(&c.Destination, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (db *DB) queryFlights(query string, args ...any) ([]Flight, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var flights []Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}
