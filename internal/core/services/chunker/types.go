package chunker

import "context"

// Window is one inclusive 1-based page range of a source document
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Length returns the number of pages covered by the window
func (w Window) Length() int {
	return w.End - w.Start + 1
}

// PageImage is a single page rendered to a fixed-resolution PNG
type PageImage struct {
	PageNum int    // 1-based
	PNG     []byte
}

// Chunk is one rendered page window: raster images as primary evidence
// plus any embedded text the document carried.
type Chunk struct {
	Window  Window
	Images  []PageImage
	Text    string
	HasText bool
}

// Rasterizer abstracts the source file format. Pages are 1-based.
type Rasterizer interface {
	PageCount() int
	RenderPNG(ctx context.Context, page int, dpi int) ([]byte, error)
	PageText(ctx context.Context, page int) (string, error)
	Close() error
}

// RasterizerOpener opens a document file for rendering
type RasterizerOpener interface {
	Open(path string) (Rasterizer, error)
}
