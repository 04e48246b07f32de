package main

import (
	"database/sql"
)

// SyncStore wraps the sqlite handle with the queries the sync routes
// need.
type SyncStore struct {
	db *sql.DB
}

func NewSyncStore(database *sql.DB) *SyncStore {
	return &SyncStore{db: database}
}

// GetOrCreateUser loads the sync head for a user, creating an empty one
// on first contact.
func (s *SyncStore) GetOrCreateUser(userID string) (*SyncUser, error) {
	user := &SyncUser{UserID: userID}
	err := s.db.QueryRow(
		"SELECT nonce, pwd_hash FROM sync_users WHERE user_id = ?", userID,
	).Scan(&user.Nonce, &user.PwdHash)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec("INSERT INTO sync_users (user_id) VALUES (?)", userID)
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SyncStore) UpdateUser(userID string, nonce int64, pwdHash string) error {
	_, err := s.db.Exec(
		"UPDATE sync_users SET nonce = ?, pwd_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?",
		nonce, pwdHash, userID,
	)
	return err
}

// FindRecords returns every record for the user keyed by record key.
func (s *SyncStore) FindRecords(userID string) (map[string]SyncItem, error) {
	rows, err := s.db.Query(
		"SELECT key, data_type, data, data_timestamp, is_deleted FROM sync_records WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]SyncItem)
	for rows.Next() {
		var item SyncItem
		if err := rows.Scan(&item.Key, &item.DataType, &item.Data, &item.DataTimestamp, &item.IsDeleted); err != nil {
			return nil, err
		}
		records[item.Key] = item
	}
	return records, rows.Err()
}

// FindRecordsPage returns a page of records ordered by key.
func (s *SyncStore) FindRecordsPage(userID string, includeDeleted bool, limit, skip int) ([]SyncItem, error) {
	query := "SELECT key, data_type, data, data_timestamp, is_deleted FROM sync_records WHERE user_id = ?"
	if !includeDeleted {
		query += " AND is_deleted = 0"
	}
	query += " ORDER BY key LIMIT ? OFFSET ?"

	rows, err := s.db.Query(query, userID, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []SyncItem{}
	for rows.Next() {
		var item SyncItem
		if err := rows.Scan(&item.Key, &item.DataType, &item.Data, &item.DataTimestamp, &item.IsDeleted); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertRecords writes the given items, last write wins by timestamp.
// Overwritten rows are archived to history first. Returns counts of
// created and updated rows.
func (s *SyncStore) UpsertRecords(userID string, items []SyncItem) (created, updated int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	for _, item := range items {
		var existing SyncItem
		row := tx.QueryRow(
			"SELECT key, data_type, data, data_timestamp, is_deleted FROM sync_records WHERE user_id = ? AND key = ?",
			userID, item.Key,
		)
		scanErr := row.Scan(&existing.Key, &existing.DataType, &existing.Data, &existing.DataTimestamp, &existing.IsDeleted)
		if scanErr == sql.ErrNoRows {
			_, err = tx.Exec(
				"INSERT INTO sync_records (user_id, key, data_type, data, data_timestamp, is_deleted) VALUES (?, ?, ?, ?, ?, ?)",
				userID, item.Key, item.DataType, item.Data, item.DataTimestamp, item.IsDeleted,
			)
			if err != nil {
				return 0, 0, err
			}
			created++
			continue
		}
		if scanErr != nil {
			return 0, 0, scanErr
		}
		if item.DataTimestamp < existing.DataTimestamp {
			continue
		}
		if err = archiveRecord(tx, userID, existing); err != nil {
			return 0, 0, err
		}
		_, err = tx.Exec(
			"UPDATE sync_records SET data_type = ?, data = ?, data_timestamp = ?, is_deleted = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND key = ?",
			item.DataType, item.Data, item.DataTimestamp, item.IsDeleted, userID, item.Key,
		)
		if err != nil {
			return 0, 0, err
		}
		updated++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

// ReplaceRecords archives every existing record, deletes them, then
// inserts the replacement set.
func (s *SyncStore) ReplaceRecords(userID string, items []SyncItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT key, data_type, data, data_timestamp, is_deleted FROM sync_records WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return err
	}
	var existing []SyncItem
	for rows.Next() {
		var item SyncItem
		if err := rows.Scan(&item.Key, &item.DataType, &item.Data, &item.DataTimestamp, &item.IsDeleted); err != nil {
			rows.Close()
			return err
		}
		existing = append(existing, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, item := range existing {
		if err := archiveRecord(tx, userID, item); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("DELETE FROM sync_records WHERE user_id = ?", userID); err != nil {
		return err
	}
	for _, item := range items {
		_, err := tx.Exec(
			"INSERT INTO sync_records (user_id, key, data_type, data, data_timestamp, is_deleted) VALUES (?, ?, ?, ?, ?, ?)",
			userID, item.Key, item.DataType, item.Data, item.DataTimestamp, item.IsDeleted,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func archiveRecord(tx *sql.Tx, userID string, item SyncItem) error {
	_, err := tx.Exec(
		"INSERT INTO sync_history (user_id, key, data_type, data, data_timestamp, is_deleted) VALUES (?, ?, ?, ?, ?, ?)",
		userID, item.Key, item.DataType, item.Data, item.DataTimestamp, item.IsDeleted,
	)
	return err
}

// CountRecords returns the number of non-deleted records for the user.
func (s *SyncStore) CountRecords(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sync_records WHERE user_id = ? AND is_deleted = 0", userID,
	).Scan(&count)
	return count, err
}
