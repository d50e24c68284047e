package audit

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Entry is one recorded configuration change. Webhook and API key mutations
// are audited; read traffic and delivery attempts are not.
type Entry struct {
	ID           string                 `json:"id"`
	ActorID      string                 `json:"actor_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata"`
	IPAddress    string                 `json:"ip_address"`
	UserAgent    string                 `json:"user_agent"`
	CreatedAt    int64                  `json:"created_at"`
}

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Record writes one audit entry. Best effort; a failed audit write is logged
// and never fails the request that triggered it.
func (l *Logger) Record(r *http.Request, actorID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	metaJSON, _ := json.Marshal(metadata)

	entry := &Entry{
		ID:           "audit_" + uuid.New().String(),
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
		CreatedAt:    time.Now().Unix(),
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := l.db.Exec(query, entry.ID, entry.ActorID, entry.Action, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt); err != nil {
		log.Warn().Err(err).Str("action", action).Str("resource_id", resourceID).Msg("failed to write audit entry")
	}
}

func (l *Logger) ListByActor(actorID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, actor_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at FROM audit_logs WHERE actor_id = ? ORDER BY created_at DESC LIMIT ?`
	rows, err := l.db.Query(query, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var metaStr string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID, &metaStr, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(metaStr), &e.Metadata)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
