// Package render turns a report.Summary into a document. Renderers consume
// only the Summary and know nothing about the stores it came from.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gpetl/internal/report"
)

// Renderer writes a summary in one output format.
type Renderer interface {
	// Name is the format name, e.g. "xlsx".
	Name() string
	Render(w io.Writer, s report.Summary) error
}

// Title is used as the document heading and chart title prefix.
const Title = "TEC subscription by GP area deprivation"

// ToFile renders s into path, creating parent directories.
func ToFile(ctx context.Context, r Renderer, path string, s report.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render %s: %w", r.Name(), err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render %s: %w", r.Name(), err)
	}
	if err := r.Render(f, s); err != nil {
		_ = f.Close()
		return fmt.Errorf("render %s: %w", r.Name(), err)
	}
	return f.Close()
}

// cellValue maps an undefined statistic to an empty cell.
func cellValue(v report.Value) any {
	if !v.Defined {
		return nil
	}
	return v.V
}
