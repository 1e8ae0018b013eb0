package overlay

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/report-engine/boletin"
)

// =============================================================================
// BATCH EXPORT
// =============================================================================

// Name formats of exported pages.
const (
	NameDefault  = "default"
	NameLastname = "lastname"
	NameOrder    = "order"
)

// Page is one rendered student.
type Page struct {
	Student string  `json:"student"`
	Fields  []Field `json:"fields"`
}

// Sink receives exported pages.
type Sink interface {
	WritePage(ctx context.Context, name string, page Page) error
}

// Students is what BatchExport walks through.
type Students interface {
	Students() []string
	CurrentStudent() string
	LoadStudent(name string, saveCurrent bool)
	State() boletin.SectionState
}

var (
	parenthesized = regexp.MustCompile(`\s*\(.*?\)`)
	unsafeChars   = regexp.MustCompile(`[/\\?%*:|"<>]`)
)

// FileName derives an export name (without extension) for a student.
// "lastname" uses "<apellidos> <nombres>" when both exist; "order" uses
// "<order> - <full name>" when an order exists; otherwise the roster name.
// Parenthesized suffixes are dropped and unsafe characters become "-".
func FileName(format, student string, info boletin.StudentInfo) string {
	name := student
	switch {
	case format == NameLastname && info.Apellidos != "" && info.Nombres != "":
		name = info.Apellidos + " " + info.Nombres
	case format == NameOrder && info.Order != "":
		full := strings.TrimSpace(info.Nombres + " " + info.Apellidos)
		if full == "" {
			full = student
		}
		name = info.Order.String() + " - " + full
	}
	name = parenthesized.ReplaceAllString(name, "")
	name = strings.TrimSpace(unsafeChars.ReplaceAllString(name, "-"))
	if name == "" {
		return "SinNombre"
	}
	return name
}

// BatchExport renders every student in navigation order into sink. The
// context is checked between students; cancellation returns
// ErrExportCancelled. The originally current student is restored on every
// exit path. It returns the number of pages written.
func BatchExport(ctx context.Context, src Students, r *Renderer, sink Sink, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	students := src.Students()
	original := src.CurrentStudent()
	format := src.State().Settings.PDFNameFormat
	if format == "" {
		format = NameDefault
	}

	defer func() {
		if original != "" {
			src.LoadStudent(original, true)
		}
	}()

	written := 0
	for i, student := range students {
		if err := ctx.Err(); err != nil {
			log.Info("export cancelled", zap.Int("written", written), zap.Int("total", len(students)))
			return written, fmt.Errorf("%w: %v", boletin.ErrExportCancelled, err)
		}

		src.LoadStudent(student, true)
		st := src.State()
		r.Render(st)

		name := FileName(format, student, st.StudentInfo)
		page := Page{Student: student, Fields: r.Canvas().Fields()}
		if err := sink.WritePage(ctx, name, page); err != nil {
			return written, fmt.Errorf("failed to export %s: %w", name, err)
		}
		written++
		log.Debug("page exported", zap.String("name", name), zap.Int("index", i+1), zap.Int("total", len(students)))
	}
	return written, nil
}
