package rasterizer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/alonsogarciap/financial-parsing-service/internal/core/services/chunker"
)

// FitzOpener opens PDF documents through MuPDF
type FitzOpener struct{}

// NewFitzOpener creates a new opener
func NewFitzOpener() *FitzOpener {
	return &FitzOpener{}
}

// Open opens a document file for rendering
func (o *FitzOpener) Open(path string) (chunker.Rasterizer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return &fitzRasterizer{doc: doc}, nil
}

// fitzRasterizer renders pages of one open document. MuPDF pages are
// 0-based; the chunker API is 1-based.
type fitzRasterizer struct {
	doc *fitz.Document
}

func (r *fitzRasterizer) PageCount() int {
	return r.doc.NumPage()
}

func (r *fitzRasterizer) RenderPNG(ctx context.Context, page int, dpi int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > r.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range [1, %d]", page, r.doc.NumPage())
	}

	img, err := r.doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page %d: %w", page, err)
	}
	return buf.Bytes(), nil
}

func (r *fitzRasterizer) PageText(ctx context.Context, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if page < 1 || page > r.doc.NumPage() {
		return "", fmt.Errorf("page %d out of range [1, %d]", page, r.doc.NumPage())
	}
	return r.doc.Text(page - 1)
}

func (r *fitzRasterizer) Close() error {
	return r.doc.Close()
}
