package parsejob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/domain"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/chunker"
	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/extraction"
	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/config"
	apperrors "github.com/alonsogarciap/financial-parsing-service/internal/pkg/errors"
)

// mockJobRepository tracks job state transitions in memory
type mockJobRepository struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*domain.ParseJob
	hasActive bool
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[uuid.UUID]*domain.ParseJob)}
}

func (m *mockJobRepository) Create(ctx context.Context, job *domain.ParseJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ParseJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, apperrors.RecordNotFound("parse job")
	}
	copied := *job
	return &copied, nil
}

func (m *mockJobRepository) LatestForDocument(ctx context.Context, documentID uuid.UUID) (*domain.ParseJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.DocumentID == documentID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockJobRepository) HasActiveJob(ctx context.Context, documentID uuid.UUID) (bool, error) {
	return m.hasActive, nil
}

func (m *mockJobRepository) IncrementCompletedChunks(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.CompletedChunks++
	}
	return nil
}

func (m *mockJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.JobStatusCompleted
		job.ErrorMessage = errorMessage
	}
	return nil
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.JobStatusFailed
		job.ErrorMessage = &errorMessage
	}
	return nil
}

type mockStatementWriter struct {
	mu         sync.Mutex
	replaced   []domain.FinancialStatement
	replaceErr error
	calls      int
}

func (m *mockStatementWriter) ReplaceForDocument(ctx context.Context, documentID uuid.UUID, statements []domain.FinancialStatement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.calls++
	m.replaced = statements
	return nil
}

type mockDocumentRepository struct {
	doc *domain.Document
	err error
}

func (m *mockDocumentRepository) GetForInvestment(ctx context.Context, documentID, investmentID uuid.UUID) (*domain.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.doc, nil
}

type mockChunkRenderer struct {
	windows   []chunker.Window
	renderErr map[int]error // keyed by window start
}

func (m *mockChunkRenderer) Windows(path string) ([]chunker.Window, error) {
	return m.windows, nil
}

func (m *mockChunkRenderer) RenderChunk(ctx context.Context, path string, w chunker.Window) (chunker.Chunk, error) {
	if err, ok := m.renderErr[w.Start]; ok {
		return chunker.Chunk{}, err
	}
	return chunker.Chunk{Window: w}, nil
}

// mockExtractor returns canned statements per window start page
type mockExtractor struct {
	results map[int][]extraction.RawStatement
	errs    map[int]error
}

func (m *mockExtractor) Extract(ctx context.Context, chunk chunker.Chunk) ([]extraction.RawStatement, error) {
	if err, ok := m.errs[chunk.Window.Start]; ok {
		return nil, err
	}
	return m.results[chunk.Window.Start], nil
}

type mockEnqueuer struct {
	tasks []ParseTask
	err   error
}

func (m *mockEnqueuer) EnqueueParse(ctx context.Context, task ParseTask) error {
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

type mockInvalidator struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
}

func (m *mockInvalidator) InvalidateInvestment(ctx context.Context, investmentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, investmentID)
	return nil
}

type serviceFixture struct {
	service    *Service
	jobs       *mockJobRepository
	statements *mockStatementWriter
	documents  *mockDocumentRepository
	chunks     *mockChunkRenderer
	extractor  *mockExtractor
	queue      *mockEnqueuer
	cache      *mockInvalidator
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	f := &serviceFixture{
		jobs:       newMockJobRepository(),
		statements: &mockStatementWriter{},
		documents: &mockDocumentRepository{doc: &domain.Document{
			ID:           uuid.New(),
			InvestmentID: uuid.New(),
			FilePath:     path,
			DocumentType: ".pdf",
		}},
		chunks: &mockChunkRenderer{windows: []chunker.Window{
			{Start: 1, End: 25},
			{Start: 21, End: 45},
			{Start: 41, End: 60},
		}},
		extractor: &mockExtractor{results: map[int][]extraction.RawStatement{}},
		queue:     &mockEnqueuer{},
		cache:     &mockInvalidator{},
	}

	cfg := config.ParsingConfig{
		ChunkSize:         25,
		ChunkOverlap:      5,
		MaxConcurrency:    3,
		RenderDPI:         150,
		AllowedExtensions: []string{".pdf"},
	}
	llm := config.LLMConfig{GeminiAPIKey: "test-key", GeminiModel: "gemini-2.0-flash"}

	f.service = NewService(cfg, llm, f.chunks, f.extractor, f.jobs, f.statements, f.documents, f.queue, f.cache, nil)
	return f
}

func rawIncomeStatement(period string, itemCount int) extraction.RawStatement {
	items := make([]extraction.RawLineItem, itemCount)
	for i := range items {
		items[i] = extraction.RawLineItem{Category: "revenue", Label: fmt.Sprintf("Item %d", i)}
	}
	return extraction.RawStatement{
		StatementType: domain.StatementTypeIncome,
		Period:        period,
		LineItems:     items,
	}
}

func TestService_Trigger_CreatesJob(t *testing.T) {
	f := newFixture(t)

	job, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, 3, job.TotalChunks)
	assert.Equal(t, 0, job.CompletedChunks)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, job.ID, f.queue.tasks[0].JobID)
	assert.Len(t, f.queue.tasks[0].Windows, 3)
}

func TestService_Trigger_MissingCredential(t *testing.T) {
	f := newFixture(t)
	f.service.llm.GeminiAPIKey = ""

	_, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingCredential))
	assert.Empty(t, f.queue.tasks)
}

func TestService_Trigger_UnsupportedDocument(t *testing.T) {
	f := newFixture(t)
	f.documents.doc.DocumentType = ".docx"

	_, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnsupportedDocument))
}

func TestService_Trigger_MissingFile(t *testing.T) {
	f := newFixture(t)
	f.documents.doc.FilePath = filepath.Join(t.TempDir(), "missing.pdf")

	_, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestService_Trigger_ActiveJobRejected(t *testing.T) {
	f := newFixture(t)
	f.jobs.hasActive = true

	_, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeJobAlreadyActive))
	assert.Empty(t, f.queue.tasks)
}

func TestService_Trigger_EnqueueFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.queue.err = fmt.Errorf("redis unreachable")

	_, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)

	require.Error(t, err)
	require.Len(t, f.jobs.jobs, 1)
	for _, job := range f.jobs.jobs {
		assert.Equal(t, domain.JobStatusFailed, job.Status)
	}
}

func triggeredTask(t *testing.T, f *serviceFixture) ParseTask {
	t.Helper()
	_, err := f.service.Trigger(context.Background(), uuid.New(), f.documents.doc.ID)
	require.NoError(t, err)
	require.Len(t, f.queue.tasks, 1)
	return f.queue.tasks[0]
}

func TestService_Run_AllChunksSucceed(t *testing.T) {
	f := newFixture(t)
	f.extractor.results[1] = []extraction.RawStatement{rawIncomeStatement("Q1 2024", 2)}
	f.extractor.results[21] = []extraction.RawStatement{rawIncomeStatement("Q1 2024", 5)}
	f.extractor.results[41] = []extraction.RawStatement{rawIncomeStatement("Q2 2024", 3)}
	task := triggeredTask(t, f)

	f.service.Run(context.Background(), task)

	job, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.CompletedChunks)
	assert.Nil(t, job.ErrorMessage)

	// Duplicate Q1 resolved to the candidate with more line items
	require.Len(t, f.statements.replaced, 2)
	byPeriod := make(map[string]domain.FinancialStatement)
	for _, s := range f.statements.replaced {
		byPeriod[s.Period] = s
	}
	assert.Len(t, byPeriod["Q1 2024"].LineItems, 5)
	assert.Len(t, byPeriod["Q2 2024"].LineItems, 3)

	assert.Equal(t, []uuid.UUID{task.InvestmentID}, f.cache.invalidated)
}

func TestService_Run_PartialFailureCompletes(t *testing.T) {
	f := newFixture(t)
	f.extractor.results[1] = []extraction.RawStatement{rawIncomeStatement("Q1 2024", 2)}
	f.extractor.errs = map[int]error{
		21: apperrors.ExtractionFailed(fmt.Errorf("rate limited")),
		41: apperrors.ExtractionInvalidResponse("not valid JSON"),
	}
	task := triggeredTask(t, f)

	f.service.Run(context.Background(), task)

	job, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.CompletedChunks)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "Partial errors: ")
	assert.Contains(t, *job.ErrorMessage, "Pages 21-45")
	assert.Contains(t, *job.ErrorMessage, "Pages 41-60")

	require.Len(t, f.statements.replaced, 1)
	assert.Equal(t, "Q1 2024", f.statements.replaced[0].Period)
}

func TestService_Run_AllChunksFail(t *testing.T) {
	f := newFixture(t)
	f.extractor.errs = map[int]error{
		1:  apperrors.ExtractionFailed(fmt.Errorf("timeout")),
		21: apperrors.ExtractionFailed(fmt.Errorf("timeout")),
		41: apperrors.ExtractionFailed(fmt.Errorf("timeout")),
	}
	task := triggeredTask(t, f)

	f.service.Run(context.Background(), task)

	job, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.CompletedChunks)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "Pages 1-25")
	assert.Equal(t, 0, f.statements.calls)
	assert.Empty(t, f.cache.invalidated)
}

func TestService_Run_EmptyResultsStillCompletes(t *testing.T) {
	// Every chunk succeeds but finds nothing: a completed job with an
	// empty statement set, not a failure.
	f := newFixture(t)
	task := triggeredTask(t, f)

	f.service.Run(context.Background(), task)

	job, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, f.statements.calls)
	assert.Empty(t, f.statements.replaced)
}

func TestService_Run_PersistFailureFailsJob(t *testing.T) {
	f := newFixture(t)
	f.extractor.results[1] = []extraction.RawStatement{rawIncomeStatement("Q1 2024", 2)}
	f.statements.replaceErr = fmt.Errorf("constraint violation")
	task := triggeredTask(t, f)

	f.service.Run(context.Background(), task)

	job, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}

func TestService_Run_ErrorsSortedByPage(t *testing.T) {
	f := newFixture(t)
	f.extractor.results[1] = []extraction.RawStatement{rawIncomeStatement("Q1 2024", 2)}
	f.extractor.errs = map[int]error{
		21: fmt.Errorf("b"),
		41: fmt.Errorf("a"),
	}
	task := triggeredTask(t, f)

	f.service.Run(context.Background(), task)

	job, err := f.jobs.GetByID(context.Background(), task.JobID)
	require.NoError(t, err)
	require.NotNil(t, job.ErrorMessage)
	first := strings.Index(*job.ErrorMessage, "Pages 21-45")
	second := strings.Index(*job.ErrorMessage, "Pages 41-60")
	assert.Less(t, first, second)
}

func TestService_Status(t *testing.T) {
	f := newFixture(t)
	task := triggeredTask(t, f)

	job, err := f.service.Status(context.Background(), task.DocumentID)

	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, task.JobID, job.ID)
}

func TestService_Status_NeverParsed(t *testing.T) {
	f := newFixture(t)

	job, err := f.service.Status(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Nil(t, job)
}
