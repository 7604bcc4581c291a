package parsejob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/chunker"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/extraction"
	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/config"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// Service owns the parse job state machine: it validates and creates
// jobs on the request path and drives the chunk loop in the background
// worker.
type Service struct {
	config      config.ParsingConfig
	llm         config.LLMConfig
	chunks      ChunkRenderer
	extractor   extraction.Extractor
	jobs        JobRepository
	statements  StatementWriter
	documents   DocumentRepository
	queue       Enqueuer
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService creates a new parse job controller
func NewService(
	cfg config.ParsingConfig,
	llm config.LLMConfig,
	chunks ChunkRenderer,
	extractor extraction.Extractor,
	jobs JobRepository,
	statements StatementWriter,
	documents DocumentRepository,
	queue Enqueuer,
	invalidator Invalidator,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:      cfg,
		llm:         llm,
		chunks:      chunks,
		extractor:   extractor,
		jobs:        jobs,
		statements:  statements,
		documents:   documents,
		queue:       queue,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Trigger validates the document and creates a parse job. Window
// computation happens synchronously here; extraction runs in the
// background worker after the task is enqueued. At most one job in
// {pending, processing} may exist per document.
func (s *Service) Trigger(ctx context.Context, investmentID, documentID uuid.UUID) (*domain.ParseJob, error) {
	if s.llm.GeminiAPIKey == "" {
		return nil, apperrors.MissingCredential("GEMINI_API_KEY")
	}

	doc, err := s.documents.GetForInvestment(ctx, documentID, investmentID)
	if err != nil {
		return nil, err
	}

	if !s.config.IsAllowedExtension(doc.DocumentType) {
		return nil, apperrors.UnsupportedDocument(doc.DocumentType)
	}

	if _, err := os.Stat(doc.FilePath); err != nil {
		return nil, apperrors.RecordNotFound("document file")
	}

	active, err := s.jobs.HasActiveJob(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperrors.JobAlreadyActive("a parsing job is already in progress for this document")
	}

	windows, err := s.chunks.Windows(doc.FilePath)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to chunk document")
	}

	job := &domain.ParseJob{
		DocumentID:  documentID,
		Status:      domain.JobStatusProcessing,
		TotalChunks: len(windows),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	task := ParseTask{
		JobID:        job.ID,
		DocumentID:   documentID,
		InvestmentID: investmentID,
		FilePath:     doc.FilePath,
		Windows:      windows,
	}
	if err := s.queue.EnqueueParse(ctx, task); err != nil {
		s.logger.Error("failed to enqueue parse task",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
		if ferr := s.jobs.MarkFailed(ctx, job.ID, "failed to schedule background processing"); ferr != nil {
			s.logger.Error("failed to fail job after enqueue error", slog.Any("error", ferr))
		}
		return nil, apperrors.InternalWrap(err, "failed to schedule parse job")
	}

	s.logger.Info("parse job created",
		slog.String("job_id", job.ID.String()),
		slog.String("document_id", documentID.String()),
		slog.Int("total_chunks", len(windows)))

	return job, nil
}

// Status returns the most recent parse job for a document
func (s *Service) Status(ctx context.Context, documentID uuid.UUID) (*domain.ParseJob, error) {
	return s.jobs.LatestForDocument(ctx, documentID)
}

// chunkError tags a chunk failure with its page range so the job's
// error_message stays readable after parallel execution.
type chunkError struct {
	startPage int
	message   string
}

// Run processes all chunks of one parse job. Chunk extractions are
// independent and execute with bounded parallelism; a chunk failure is
// recorded and the run continues. Run never returns an error and never
// panics out: any failure ends in a terminal job state instead.
func (s *Service) Run(ctx context.Context, task ParseTask) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("parse job panicked",
				slog.String("job_id", task.JobID.String()),
				slog.Any("panic", r))
			if err := s.jobs.MarkFailed(context.WithoutCancel(ctx), task.JobID, fmt.Sprintf("internal error: %v", r)); err != nil {
				s.logger.Error("failed to mark panicked job as failed", slog.Any("error", err))
			}
		}
	}()

	var (
		mu      sync.Mutex
		results [][]extraction.RawStatement
		errs    []chunkError
	)

	g := new(errgroup.Group)
	g.SetLimit(s.config.MaxConcurrency)

	for _, w := range task.Windows {
		g.Go(func() error {
			statements, err := s.processChunk(ctx, task.FilePath, w)

			// Progress is an attempt counter: it moves after every
			// chunk regardless of outcome.
			if ierr := s.jobs.IncrementCompletedChunks(ctx, task.JobID); ierr != nil {
				s.logger.Error("failed to update job progress",
					slog.String("job_id", task.JobID.String()),
					slog.Any("error", ierr))
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, chunkError{
					startPage: w.Start,
					message:   fmt.Sprintf("Pages %d-%d: %v", w.Start, w.End, err),
				})
				return nil
			}
			results = append(results, statements)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].startPage < errs[j].startPage })
	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.message
	}

	if len(results) == 0 {
		msg := "No results extracted"
		if len(messages) > 0 {
			msg = strings.Join(messages, "; ")
		}
		if err := s.jobs.MarkFailed(ctx, task.JobID, msg); err != nil {
			s.logger.Error("failed to mark job as failed",
				slog.String("job_id", task.JobID.String()),
				slog.Any("error", err))
		}
		return
	}

	merged := extraction.MergeStatements(results)
	if err := s.statements.ReplaceForDocument(ctx, task.DocumentID, buildStatements(task.DocumentID, merged)); err != nil {
		s.logger.Error("failed to persist statements",
			slog.String("job_id", task.JobID.String()),
			slog.Any("error", err))
		if ferr := s.jobs.MarkFailed(ctx, task.JobID, err.Error()); ferr != nil {
			s.logger.Error("failed to mark job as failed", slog.Any("error", ferr))
		}
		return
	}

	// Replacing statements makes any cached comparison stale
	if s.invalidator != nil && task.InvestmentID != uuid.Nil {
		if err := s.invalidator.InvalidateInvestment(ctx, task.InvestmentID); err != nil {
			s.logger.Warn("failed to invalidate comparison cache", slog.Any("error", err))
		}
	}

	var partial *string
	if len(messages) > 0 {
		msg := "Partial errors: " + strings.Join(messages, "; ")
		partial = &msg
	}
	if err := s.jobs.MarkCompleted(ctx, task.JobID, partial); err != nil {
		s.logger.Error("failed to mark job as completed",
			slog.String("job_id", task.JobID.String()),
			slog.Any("error", err))
		return
	}

	s.logger.Info("parse job completed",
		slog.String("job_id", task.JobID.String()),
		slog.Int("statement_count", len(merged)),
		slog.Int("failed_chunks", len(errs)))
}

// processChunk renders one window and extracts its statements
func (s *Service) processChunk(ctx context.Context, path string, w chunker.Window) ([]extraction.RawStatement, error) {
	chunk, err := s.chunks.RenderChunk(ctx, path, w)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, chunk)
}

// buildStatements converts merged raw statements into domain entities,
// keeping the verbatim extracted JSON for audit.
func buildStatements(documentID uuid.UUID, merged []extraction.RawStatement) []domain.FinancialStatement {
	statements := make([]domain.FinancialStatement, 0, len(merged))
	for _, raw := range merged {
		stmt := domain.FinancialStatement{
			DocumentID:    documentID,
			StatementType: raw.StatementType,
			Period:        raw.Period,
			PeriodEndDate: raw.PeriodEndDate,
			Currency:      raw.Currency,
			Unit:          raw.Unit,
			SourcePages:   raw.SourcePages,
			ReviewStatus:  domain.ReviewStatusPending,
		}
		if rawJSON, err := json.Marshal(raw); err == nil {
			s := string(rawJSON)
			stmt.RawResponse = &s
		}

		stmt.LineItems = make([]domain.LineItem, 0, len(raw.LineItems))
		for idx, item := range raw.LineItems {
			category := item.Category
			if category == "" {
				category = "other"
			}
			stmt.LineItems = append(stmt.LineItems, domain.LineItem{
				Category:    category,
				Label:       item.Label,
				Value:       item.ValueOf(),
				IsTotal:     item.IsTotal,
				IndentLevel: item.IndentLevel,
				SortOrder:   idx,
			})
		}
		statements = append(statements, stmt)
	}
	return statements
}
