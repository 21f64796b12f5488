package handlers

import (
	"context"

	"rastersalvage/internal/batch"
	"rastersalvage/internal/journal"
	"rastersalvage/internal/salvage"

	"github.com/google/uuid"
)

type Salvager interface {
	Run(ctx context.Context, bucket, key string) (salvage.Result, error)
}

type RunJournal interface {
	ListRuns(ctx context.Context, limit int) ([]journal.Entry, error)
	GetRun(ctx context.Context, id uuid.UUID) (journal.Entry, error)
}

type BatchStatus struct {
	Running     bool           `json:"running"`
	Bucket      string         `json:"bucket,omitempty"`
	LastSummary *batch.Summary `json:"last_summary,omitempty"`
	LastError   string         `json:"last_error,omitempty"`
}

type BatchTrigger interface {
	Trigger(bucket string, keys []string) bool
	Status() BatchStatus
}

// Handler serves the salvage API. Journal and batches may be nil when the
// server runs without them.
type Handler struct {
	salvager Salvager
	journal  RunJournal
	batches  BatchTrigger
}

func New(s Salvager, j RunJournal, b BatchTrigger) *Handler {
	return &Handler{
		salvager: s,
		journal:  j,
		batches:  b,
	}
}
