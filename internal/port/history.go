package port

import "convq/internal/domain"

// HistoryStore records terminal job outcomes for reporting. It is never
// consulted for scheduling; queue state lives in memory only.
type HistoryStore interface {
	Record(entry domain.HistoryEntry) error
	Recent(limit int) ([]domain.HistoryEntry, error)
}
