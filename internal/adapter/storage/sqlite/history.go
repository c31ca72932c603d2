package sqlite

import (
	"convq/internal/domain"
	"convq/internal/port"
)

// History records terminal job outcomes. The queue itself is never
// persisted; this table is reporting only.
type History struct {
	store *Store
}

func NewHistory(store *Store) *History {
	return &History{store: store}
}

func (h *History) Record(entry domain.HistoryEntry) error {
	_, err := h.store.db.Exec(
		`INSERT INTO conversion_history (job_id, source, destination, status, exit_status, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.JobID, entry.Source, entry.Destination, string(entry.Status), entry.ExitStatus, entry.FinishedAt,
	)
	return err
}

func (h *History) Recent(limit int) ([]domain.HistoryEntry, error) {
	rows, err := h.store.db.Query(
		`SELECT id, job_id, source, destination, status, exit_status, finished_at
		 FROM conversion_history
		 ORDER BY finished_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.JobID, &e.Source, &e.Destination, &status, &e.ExitStatus, &e.FinishedAt); err != nil {
			return nil, err
		}
		e.Status = domain.JobStatus(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ port.HistoryStore = (*History)(nil)
