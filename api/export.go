package api

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/warp/report-engine/overlay"
)

// zipSink writes each exported page as <name>.json into a zip archive.
// Repeated names get a numeric suffix.
type zipSink struct {
	zw   *zip.Writer
	seen map[string]int
}

func newZipSink(w io.Writer) *zipSink {
	return &zipSink{zw: zip.NewWriter(w), seen: make(map[string]int)}
}

func (s *zipSink) WritePage(ctx context.Context, name string, page overlay.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		name = "boletin"
	}
	s.seen[name]++
	if n := s.seen[name]; n > 1 {
		name = fmt.Sprintf("%s (%d)", name, n)
	}

	f, err := s.zw.Create(name + ".json")
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", name, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}

func (s *zipSink) Close() error {
	return s.zw.Close()
}
