package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Record is the persisted build history row for one completed snapshot.
// Every node is a lexical document, so NodeCount doubles as the lexical
// document count.
type Record struct {
	bun.BaseModel `bun:"table:engine.snapshots,alias:snap"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	BuildSeq          int64      `bun:"build_seq,autoincrement" json:"build_seq"`
	NodeCount         int        `bun:"node_count,notnull" json:"node_count"`
	EdgeCount         int        `bun:"edge_count,notnull" json:"edge_count"`
	VectorCount       int        `bun:"vector_count,notnull,default:0" json:"vector_count"`
	PathCount         int64      `bun:"path_count,notnull" json:"path_count"`
	EmbeddingProvider string     `bun:"embedding_provider,notnull,default:''" json:"embedding_provider"`
	Overflowed        int        `bun:"overflowed,notnull,default:0" json:"overflowed"`
	BuildMs           int64      `bun:"build_ms,notnull" json:"build_ms"`
	BuiltAt           time.Time  `bun:"built_at,notnull,default:now()" json:"built_at"`
	ArchivedAt        *time.Time `bun:"archived_at" json:"archived_at,omitempty"`
	ArchiveKey        string     `bun:"archive_key,notnull,default:''" json:"archive_key,omitempty"`
}

// Job triggers. Recorded on the index job row for operability.
const (
	TriggerIngest   = "ingest"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Job is one row in the index rebuild queue.
type Job struct {
	bun.BaseModel `bun:"table:engine.index_jobs,alias:ij"`

	ID          uuid.UUID      `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	Trigger     string         `bun:"trigger,notnull,default:'manual'" json:"trigger"`
	Status      string         `bun:"status,notnull,default:'pending'" json:"status"`
	Priority    int            `bun:"priority,notnull,default:0" json:"priority"`
	Attempts    int            `bun:"attempts,notnull,default:0" json:"attempts"`
	MaxAttempts int            `bun:"max_attempts,notnull,default:3" json:"max_attempts"`
	LastError   *string        `bun:"last_error" json:"last_error,omitempty"`
	Stats       map[string]any `bun:"stats,type:jsonb" json:"stats,omitempty"`

	ScheduledAt time.Time  `bun:"scheduled_at,notnull,default:now()" json:"scheduled_at"`
	StartedAt   *time.Time `bun:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `bun:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}
