package parsejob

import (
	"context"

	"github.com/google/uuid"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/chunker"
)

// ParseTask is the unit of work handed to the background worker. The
// windows are computed synchronously at trigger time so the job's
// total_chunks is fixed before the request returns.
type ParseTask struct {
	JobID        uuid.UUID        `json:"job_id"`
	DocumentID   uuid.UUID        `json:"document_id"`
	InvestmentID uuid.UUID        `json:"investment_id"`
	FilePath     string           `json:"file_path"`
	Windows      []chunker.Window `json:"windows"`
}

// JobRepository is the persistence contract for parse jobs
type JobRepository interface {
	Create(ctx context.Context, job *domain.ParseJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ParseJob, error)

	// LatestForDocument returns the most recent job for a document,
	// or nil when the document was never parsed.
	LatestForDocument(ctx context.Context, documentID uuid.UUID) (*domain.ParseJob, error)

	// HasActiveJob reports whether a job in {pending, processing}
	// exists for the document.
	HasActiveJob(ctx context.Context, documentID uuid.UUID) (bool, error)

	// IncrementCompletedChunks atomically bumps the attempt counter.
	// Progress counts attempts, not successes, and stays monotonic
	// regardless of chunk completion order.
	IncrementCompletedChunks(ctx context.Context, id uuid.UUID) error

	MarkCompleted(ctx context.Context, id uuid.UUID, errorMessage *string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// StatementWriter persists the merged result of a parse run
type StatementWriter interface {
	// ReplaceForDocument deletes every prior statement (and its line
	// items and edit logs) for the document and inserts the new set,
	// in one transaction. Re-parsing replaces, never merges.
	ReplaceForDocument(ctx context.Context, documentID uuid.UUID, statements []domain.FinancialStatement) error
}

// DocumentRepository looks up documents owned elsewhere in the system
type DocumentRepository interface {
	GetForInvestment(ctx context.Context, documentID, investmentID uuid.UUID) (*domain.Document, error)
}

// ChunkRenderer provides window computation and chunk rendering
type ChunkRenderer interface {
	Windows(path string) ([]chunker.Window, error)
	RenderChunk(ctx context.Context, path string, w chunker.Window) (chunker.Chunk, error)
}

// Enqueuer submits a parse task to the background worker
type Enqueuer interface {
	EnqueueParse(ctx context.Context, task ParseTask) error
}

// Invalidator drops derived comparison data after a destructive
// re-parse. May be nil when no cache is configured.
type Invalidator interface {
	InvalidateInvestment(ctx context.Context, investmentID uuid.UUID) error
}
