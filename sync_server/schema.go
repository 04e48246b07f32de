package main

import "database/sql"

// InitSchema creates the sync tables if they do not exist.
func InitSchema(database *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sync_users (
			user_id TEXT PRIMARY KEY,
			nonce INTEGER NOT NULL DEFAULT 0,
			pwd_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sync_records (
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			data_type TEXT NOT NULL,
			data TEXT NOT NULL,
			data_timestamp INTEGER NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, key),
			FOREIGN KEY (user_id) REFERENCES sync_users(user_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_records_type ON sync_records(user_id, data_type)`,
		`CREATE TABLE IF NOT EXISTS sync_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			data_type TEXT NOT NULL,
			data TEXT NOT NULL,
			data_timestamp INTEGER NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if _, err := database.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
