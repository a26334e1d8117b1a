package db

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection
func NewDB() (*DB, error) {
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "flight_deals")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "flight_deals")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist
func (db *DB) initSchema() error {
	// flights: one row per identity key; rows are never deleted by the
	// monitor, disappearance is visible through a stale last_seen
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS flights (
			id SERIAL PRIMARY KEY,
			flight_key VARCHAR(16) NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			destination TEXT NOT NULL,
			origin TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION,
			currency VARCHAR(10) NOT NULL DEFAULT '',
			go_date VARCHAR(10) NOT NULL,
			go_depart VARCHAR(5) NOT NULL DEFAULT '',
			go_arrive VARCHAR(5) NOT NULL DEFAULT '',
			back_date VARCHAR(10) NOT NULL DEFAULT '',
			back_depart VARCHAR(5) NOT NULL DEFAULT '',
			back_arrive VARCHAR(5) NOT NULL DEFAULT '',
			seats INTEGER,
			item_id TEXT NOT NULL DEFAULT '',
			sub_item_id TEXT NOT NULL DEFAULT '',
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flights table: %w", err)
	}

	// user_prefs: per-user browse filters for the bot layer
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_prefs (
			user_id BIGINT PRIMARY KEY,
			destinations TEXT NOT NULL DEFAULT '*',
			min_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_price DOUBLE PRECISION NOT NULL DEFAULT 1000000,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create user_prefs table: %w", err)
	}

	// saved_flights: per-user bookmarks, keyed by the offer identity key
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS saved_flights (
			user_id BIGINT NOT NULL,
			flight_key VARCHAR(16) NOT NULL,
			saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, flight_key)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create saved_flights table: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_flights_destination ON flights(destination)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_last_seen ON flights(last_seen)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_price ON flights(price)`,
	} {
		if _, err := db.conn.Exec(stmt); err != nil {
			log.Printf("Warning: Failed to create index: %v\n", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// GetConn returns the underlying database connection
func (db *DB) GetConn() *sql.DB {
	return db.conn
}
