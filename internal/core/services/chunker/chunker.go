package chunker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alonsogarciap/financial-parsing-service/internal/pkg/config"
)

// Sequence is a lazy, finite, non-restartable iterator over the page
// windows of a document. The first window starts at page 1, each
// subsequent window re-reads the last overlap pages of the previous
// one, and the final window's end is clamped to the page count.
type Sequence struct {
	pageCount int
	size      int
	overlap   int
	next      int
	done      bool
}

// NewSequence creates a window sequence over pageCount pages.
// overlap must be smaller than size; config.Load enforces this.
func NewSequence(pageCount, size, overlap int) *Sequence {
	return &Sequence{
		pageCount: pageCount,
		size:      size,
		overlap:   overlap,
		next:      1,
		done:      pageCount < 1,
	}
}

// Next yields the next window. The second return is false once the
// sequence is exhausted.
func (s *Sequence) Next() (Window, bool) {
	if s.done {
		return Window{}, false
	}

	w := Window{Start: s.next, End: s.next + s.size - 1}
	if w.End >= s.pageCount {
		w.End = s.pageCount
		s.done = true
	} else {
		s.next = w.End - s.overlap + 1
	}
	return w, true
}

// PageWindows collects every window of a document up front. Used when
// the full set is needed to size a parse job.
func PageWindows(pageCount, size, overlap int) []Window {
	var windows []Window
	seq := NewSequence(pageCount, size, overlap)
	for {
		w, ok := seq.Next()
		if !ok {
			break
		}
		windows = append(windows, w)
	}
	return windows
}

// Service renders page windows into chunks through a Rasterizer
type Service struct {
	config config.ParsingConfig
	opener RasterizerOpener
	logger *slog.Logger
}

// NewService creates a new chunker service
func NewService(cfg config.ParsingConfig, opener RasterizerOpener, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config: cfg,
		opener: opener,
		logger: logger,
	}
}

// Windows opens the document only long enough to count pages and
// computes the full window set. This runs on the request path; no
// rendering happens here.
func (s *Service) Windows(path string) ([]Window, error) {
	doc, err := s.opener.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	return PageWindows(doc.PageCount(), s.config.ChunkSize, s.config.ChunkOverlap), nil
}

// RenderChunk renders every page of a window to a PNG at the configured
// DPI and independently attempts text extraction. The chunk is marked
// HasText when any page yields non-empty text. Rendering is pure and
// side-effect-free; no chunk depends on another's content.
func (s *Service) RenderChunk(ctx context.Context, path string, w Window) (Chunk, error) {
	doc, err := s.opener.Open(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	chunk := Chunk{Window: w}
	var textParts []string

	for page := w.Start; page <= w.End; page++ {
		png, err := doc.RenderPNG(ctx, page, s.config.RenderDPI)
		if err != nil {
			return Chunk{}, fmt.Errorf("failed to render page %d: %w", page, err)
		}
		chunk.Images = append(chunk.Images, PageImage{PageNum: page, PNG: png})

		// Text extraction is best-effort; scanned pages often have none
		text, err := doc.PageText(ctx, page)
		if err != nil {
			s.logger.Debug("text extraction failed",
				slog.Int("page", page),
				slog.Any("error", err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			chunk.HasText = true
			textParts = append(textParts, fmt.Sprintf("--- Page %d ---\n%s", page, text))
		}
	}

	if chunk.HasText {
		chunk.Text = strings.Join(textParts, "\n\n")
	}

	return chunk, nil
}
