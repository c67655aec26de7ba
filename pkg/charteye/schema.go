package charteye

import (
	"database/sql"
)

func initDatabase(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT 'User',
			email TEXT NOT NULL DEFAULT '',
			account_status TEXT NOT NULL DEFAULT 'Free' CHECK (account_status IN ('Free', 'Premium')),
			upload_count INTEGER NOT NULL DEFAULT 0 CHECK (upload_count >= 0),
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chart_analyses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			image_url TEXT NOT NULL,
			analysis TEXT NOT NULL,
			pattern_clarity REAL NOT NULL,
			trend_alignment REAL NOT NULL,
			risk_reward REAL NOT NULL,
			volume_confirmation REAL NOT NULL,
			key_level_proximity REAL NOT NULL,
			overall_grade REAL NOT NULL,
			is_mock INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chart_analyses_user ON chart_analyses(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS indicator_codes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			code TEXT NOT NULL,
			language TEXT NOT NULL,
			platform TEXT NOT NULL,
			is_public INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_codes_user ON indicator_codes(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS payment_verifications (
			order_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			state TEXT NOT NULL,
			verified_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := exec(tx, stmt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func exec(tx *sql.Tx, query string) error {
	_, err := tx.Exec(query)
	return err
}
