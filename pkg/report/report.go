// Package report renders dispatch results on the primary output stream and
// per-file failures on the diagnostic logger.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/valyala/fasttemplate"

	"github.com/jacktea/xgsum/pkg/dispatch"
	"github.com/jacktea/xgsum/pkg/xerrors"
)

// Format selects how results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultTemplate mirrors the classic "<digest> <name>" checksum line.
const DefaultTemplate = "{digest} {name}"

// Options configures a Writer.
type Options struct {
	Format   Format
	Template string
}

// Record is the structured form of a result.
type Record struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Digest    string `json:"digest,omitempty" yaml:"digest,omitempty"`
	Size      int64  `json:"size" yaml:"size"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Writer renders results to w.
type Writer struct {
	w    io.Writer
	opts Options
	tpl  *fasttemplate.Template
}

// New validates opts and returns a Writer.
func New(w io.Writer, opts Options) (*Writer, error) {
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	out := &Writer{w: w, opts: opts}
	switch opts.Format {
	case FormatText:
		tpl, err := fasttemplate.NewTemplate(opts.Template, "{", "}")
		if err != nil {
			return nil, xerrors.Wrap(xerrors.KindInvalid, "report template", "", err)
		}
		out.tpl = tpl
	case FormatJSON, FormatYAML:
	default:
		return nil, xerrors.E(xerrors.KindInvalid, "report format", string(opts.Format))
	}
	return out, nil
}

// NewRecord converts a result to its structured form.
func NewRecord(r dispatch.Result) Record {
	rec := Record{
		Path:      r.Path,
		Name:      r.Name(),
		Algorithm: string(r.Algorithm),
		Size:      r.Size,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	} else {
		rec.Digest = r.Digest.String()
	}
	return rec
}

// Write renders all results in order. Text output omits failed results.
func (w *Writer) Write(results []dispatch.Result) error {
	switch w.opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w.w)
		for _, r := range results {
			if err := enc.Encode(NewRecord(r)); err != nil {
				return fmt.Errorf("report: encode json: %w", err)
			}
		}
		return nil
	case FormatYAML:
		records := make([]Record, 0, len(results))
		for _, r := range results {
			records = append(records, NewRecord(r))
		}
		data, err := yaml.Marshal(records)
		if err != nil {
			return fmt.Errorf("report: encode yaml: %w", err)
		}
		_, err = w.w.Write(data)
		return err
	default:
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			if _, err := io.WriteString(w.w, w.line(r)+"\n"); err != nil {
				return fmt.Errorf("report: write: %w", err)
			}
		}
		return nil
	}
}

func (w *Writer) line(r dispatch.Result) string {
	return w.tpl.ExecuteStringStd(map[string]any{
		"digest":    r.Digest.String(),
		"name":      r.Name(),
		"path":      r.Path,
		"size":      strconv.FormatInt(r.Size, 10),
		"algorithm": string(r.Algorithm),
	})
}

// LogFailures writes one error line per failed result.
func LogFailures(logger *slog.Logger, results []dispatch.Result) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		logger.Error("hash failed",
			"file", r.Name(),
			"kind", xerrors.KindOf(r.Err).String(),
			"err", r.Err,
		)
	}
}
