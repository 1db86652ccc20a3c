package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"watchsync/models"
)

// Repository provides access to sync state and job history.
type Repository struct {
	db *sql.DB
}

// UpsertSyncEntry records or refreshes the mapping from a Plex rating key to
// the record created in a download service.
func (r *Repository) UpsertSyncEntry(entry models.SyncEntry) error {
	if entry.Status == "" {
		entry.Status = models.StatusAdded
	}
	_, err := r.db.Exec(`
		INSERT INTO sync_map (plex_rating_key, arr_id, type, status, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(plex_rating_key) DO UPDATE SET
			arr_id = excluded.arr_id,
			type = excluded.type,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		entry.RatingKey, entry.ArrID, entry.Type, entry.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert sync entry: %w", err)
	}
	return nil
}

// GetSyncEntry returns the sync entry for a rating key, or nil when the item
// was never pushed.
func (r *Repository) GetSyncEntry(ratingKey string) (*models.SyncEntry, error) {
	row := r.db.QueryRow(`
		SELECT plex_rating_key, arr_id, type, status, updated_at
		FROM sync_map WHERE plex_rating_key = ?`, ratingKey)

	var entry models.SyncEntry
	err := row.Scan(&entry.RatingKey, &entry.ArrID, &entry.Type, &entry.Status, &entry.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync entry: %w", err)
	}
	return &entry, nil
}

// ListSyncEntries returns all sync entries, optionally filtered by status.
func (r *Repository) ListSyncEntries(status string) ([]models.SyncEntry, error) {
	query := `SELECT plex_rating_key, arr_id, type, status, updated_at FROM sync_map`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sync entries: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncEntry
	for rows.Next() {
		var entry models.SyncEntry
		if err := rows.Scan(&entry.RatingKey, &entry.ArrID, &entry.Type, &entry.Status, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan sync entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateSyncStatus sets the status of an existing entry. Returns false when
// no entry exists for the rating key.
func (r *Repository) UpdateSyncStatus(ratingKey, status string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE sync_map SET status = ?, updated_at = ? WHERE plex_rating_key = ?`,
		status, time.Now().UTC(), ratingKey)
	if err != nil {
		return false, fmt.Errorf("update sync status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update sync status: %w", err)
	}
	return n > 0, nil
}

// DeleteSyncEntry removes the entry for a rating key. Returns false when
// nothing was deleted.
func (r *Repository) DeleteSyncEntry(ratingKey string) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM sync_map WHERE plex_rating_key = ?`, ratingKey)
	if err != nil {
		return false, fmt.Errorf("delete sync entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete sync entry: %w", err)
	}
	return n > 0, nil
}

// AddJobRecord appends a job history row.
func (r *Repository) AddJobRecord(record *models.JobRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	res, err := r.db.Exec(`
		INSERT INTO job_history (timestamp, job_type, status, details)
		VALUES (?, ?, ?, ?)`,
		record.Timestamp, record.JobType, record.Status, record.Details)
	if err != nil {
		return fmt.Errorf("add job record: %w", err)
	}
	record.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add job record: %w", err)
	}
	return nil
}

// ListJobRecords returns the most recent job history rows, newest first.
func (r *Repository) ListJobRecords(limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, timestamp, job_type, status, details
		FROM job_history ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	defer rows.Close()

	var records []models.JobRecord
	for rows.Next() {
		var rec models.JobRecord
		var details sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.JobType, &rec.Status, &details); err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		rec.Details = details.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PruneJobRecords deletes history rows older than the cutoff.
func (r *Repository) PruneJobRecords(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM job_history WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune job records: %w", err)
	}
	return res.RowsAffected()
}
