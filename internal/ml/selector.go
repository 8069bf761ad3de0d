package ml

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"churnpipe/domain/core"
	"churnpipe/domain/model"
)

// Selector picks the winning candidate. The decision is a pure function of
// the results and the configured priority order: highest mean CV F1 wins,
// ties fall to held-out test F1, then to the fixed priority list.
type Selector struct {
	priority []string
}

func NewSelector(priority []string) *Selector {
	return &Selector{priority: priority}
}

// Select ranks the surviving candidates and produces the selection report.
// Every configured candidate failing is fatal: there is nothing to promote.
func (s *Selector) Select(runID core.RunID, results []model.CandidateResult) (model.CandidateResult, model.SelectionReport, error) {
	survivors := make([]model.CandidateResult, 0, len(results))
	for _, r := range results {
		if !r.Failed() {
			survivors = append(survivors, r)
		}
	}
	if len(survivors) == 0 {
		return model.CandidateResult{}, model.SelectionReport{}, core.ErrNoWinner
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.CV.MeanF1 != b.CV.MeanF1 {
			return a.CV.MeanF1 > b.CV.MeanF1
		}
		if a.Test.F1 != b.Test.F1 {
			return a.Test.F1 > b.Test.F1
		}
		return s.priorityRank(a.Spec.Name) < s.priorityRank(b.Spec.Name)
	})

	winner := survivors[0]
	report := model.SelectionReport{
		RunID:        runID,
		Winner:       winner.Spec.Name,
		WinnerMeanF1: winner.CV.MeanF1,
		WinnerTest:   winner.Test,
		GeneratedAt:  time.Now().UTC(),
	}
	for _, r := range survivors[1:] {
		report.Competitors = append(report.Competitors, model.CompetitorDelta{
			Name:    r.Spec.Name,
			MeanF1:  r.CV.MeanF1,
			TestF1:  r.Test.F1,
			DeltaF1: winner.CV.MeanF1 - r.CV.MeanF1,
		})
	}
	report.Justification = s.justify(report)
	return winner, report, nil
}

// justify renders the human-readable decision record.
func (s *Selector) justify(report model.SelectionReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected %s with cross-validated F1 of %.4f.", report.Winner, report.WinnerMeanF1)
	fmt.Fprintf(&b, " Held-out test F1 of %.4f confirms the model generalizes beyond the training partition.",
		report.WinnerTest.F1)
	if len(report.Competitors) > 0 {
		parts := make([]string, 0, len(report.Competitors))
		for _, c := range report.Competitors {
			parts = append(parts, fmt.Sprintf("%s (cv F1 %.4f, behind by %.4f)", c.Name, c.MeanF1, c.DeltaF1))
		}
		fmt.Fprintf(&b, " Outperformed: %s.", strings.Join(parts, "; "))
	}
	return b.String()
}

func (s *Selector) priorityRank(name string) int {
	for i, p := range s.priority {
		if p == name {
			return i
		}
	}
	return len(s.priority)
}
