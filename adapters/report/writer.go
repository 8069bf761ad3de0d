package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"churnpipe/domain/model"
	"churnpipe/internal/errors"
	"churnpipe/internal/logging"
	"churnpipe/ports"
)

// FileWriter renders selection outcomes into an output directory: a metrics
// JSON document for machines, and the selection report as markdown plus an
// HTML rendering for humans.
type FileWriter struct {
	dir string
	log *logging.Logger
}

func NewFileWriter(dir string, log *logging.Logger) ports.ReportWriter {
	return &FileWriter{dir: dir, log: log}
}

// metricsDocument is the on-disk metrics shape: the winner plus every
// candidate's comparison numbers, failures included.
type metricsDocument struct {
	RunID       string             `json:"run_id"`
	Winner      string             `json:"winner"`
	WinnerTest  model.TestMetrics  `json:"winner_test"`
	Candidates  []candidateMetrics `json:"candidates"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type candidateMetrics struct {
	Name        string                    `json:"name"`
	Algorithm   model.Algorithm           `json:"algorithm"`
	CV          model.CVStats             `json:"cv"`
	Test        model.TestMetrics         `json:"test"`
	Importances []model.FeatureImportance `json:"importances,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

// WriteMetrics stores the full comparison as JSON.
func (w *FileWriter) WriteMetrics(ctx context.Context, bundle *model.Bundle, results []model.CandidateResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := metricsDocument{
		RunID:       bundle.RunID.String(),
		Winner:      bundle.Winner.Spec.Name,
		WinnerTest:  bundle.Winner.Test,
		GeneratedAt: bundle.CreatedAt,
	}
	for _, r := range results {
		doc.Candidates = append(doc.Candidates, candidateMetrics{
			Name:        r.Spec.Name,
			Algorithm:   r.Spec.Algorithm,
			CV:          r.CV,
			Test:        r.Test,
			Importances: r.Importances,
			Error:       r.Err,
		})
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal metrics")
	}
	return w.writeFile("metrics.json", payload)
}

// WriteReport renders the selection report as markdown and HTML.
func (w *FileWriter) WriteReport(ctx context.Context, report *model.SelectionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	md := renderMarkdown(report)
	if err := w.writeFile("selection_report.md", []byte(md)); err != nil {
		return err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	htmlBody := markdown.ToHTML([]byte(md), p, renderer)
	return w.writeFile("selection_report.html", htmlBody)
}

func renderMarkdown(report *model.SelectionReport) string {
	var b strings.Builder
	b.WriteString("# Model Selection Report\n\n")
	fmt.Fprintf(&b, "- **Run:** %s\n", report.RunID.String())
	fmt.Fprintf(&b, "- **Winner:** %s\n", report.Winner)
	fmt.Fprintf(&b, "- **Cross-validated F1:** %.4f\n", report.WinnerMeanF1)
	fmt.Fprintf(&b, "- **Generated:** %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Held-out metrics\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Accuracy | %.4f |\n", report.WinnerTest.Accuracy)
	fmt.Fprintf(&b, "| Precision | %.4f |\n", report.WinnerTest.Precision)
	fmt.Fprintf(&b, "| Recall | %.4f |\n", report.WinnerTest.Recall)
	fmt.Fprintf(&b, "| F1 | %.4f |\n", report.WinnerTest.F1)
	fmt.Fprintf(&b, "| ROC-AUC | %.4f |\n\n", report.WinnerTest.ROCAUC)

	if len(report.Competitors) > 0 {
		b.WriteString("## Competitors\n\n")
		b.WriteString("| Candidate | CV F1 | Test F1 | Delta |\n|---|---|---|---|\n")
		for _, c := range report.Competitors {
			fmt.Fprintf(&b, "| %s | %.4f | %.4f | %.4f |\n", c.Name, c.MeanF1, c.TestF1, c.DeltaF1)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Justification\n\n")
	b.WriteString(report.Justification)
	b.WriteString("\n")
	return b.String()
}

func (w *FileWriter) writeFile(name string, payload []byte) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to write %s", name))
	}
	w.log.Info("wrote %s", path)
	return nil
}
