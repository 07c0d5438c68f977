package storage

import "time"

// Consultation is one answered citizen question, kept for the audit trail
// that ties an answer back to the articles it cited.
type Consultation struct {
	ID         string
	CreatedAt  time.Time
	SessionID  string
	Question   string
	Answer     string
	ContextIDs string // JSON array of cited article IDs stored as text
	Status     string // "answered", "insufficient_context", "failed"
}
