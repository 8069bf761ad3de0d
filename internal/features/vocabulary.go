package features

import (
	"sort"

	"churnpipe/domain/customer"
)

// Categorical column names, in the fixed order the encoder emits them.
var categoricalColumns = []string{
	"recency_category",
	"tenure_category",
	"spend_segment",
	"frequency_segment",
	"engagement_level",
	"ticket_category",
	"risk_level",
}

// Vocabulary is the frozen mapping from categorical values to one-hot
// columns. It is built once per training run and applied unchanged to every
// later encoding: a value not present at build time maps to all zeros for
// its column rather than growing the matrix.
type Vocabulary struct {
	Columns map[string][]string `json:"columns"`
}

// BuildVocabulary collects the distinct values of every categorical column in
// the table. Values are sorted so the encoded layout is deterministic for a
// given batch regardless of row order.
func BuildVocabulary(table *customer.FeatureTable) *Vocabulary {
	sets := make(map[string]map[string]struct{}, len(categoricalColumns))
	for _, col := range categoricalColumns {
		sets[col] = make(map[string]struct{})
	}
	for i := range table.Records {
		for col, val := range categoricalValues(&table.Records[i]) {
			sets[col][val] = struct{}{}
		}
	}

	vocab := &Vocabulary{Columns: make(map[string][]string, len(categoricalColumns))}
	for col, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		vocab.Columns[col] = values
	}
	return vocab
}

// Encode produces the one-hot slice for one record, in vocabulary order.
func (v *Vocabulary) Encode(r *customer.FeatureRecord) []float64 {
	vals := categoricalValues(r)
	out := make([]float64, 0, v.Width())
	for _, col := range categoricalColumns {
		for _, known := range v.Columns[col] {
			if vals[col] == known {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// Width is the total number of one-hot columns.
func (v *Vocabulary) Width() int {
	n := 0
	for _, col := range categoricalColumns {
		n += len(v.Columns[col])
	}
	return n
}

// EncodedNames lists the one-hot column names as "column=value", aligned with
// the output of Encode.
func (v *Vocabulary) EncodedNames() []string {
	names := make([]string, 0, v.Width())
	for _, col := range categoricalColumns {
		for _, val := range v.Columns[col] {
			names = append(names, col+"="+val)
		}
	}
	return names
}

func categoricalValues(r *customer.FeatureRecord) map[string]string {
	return map[string]string{
		"recency_category":  r.RecencyCategory,
		"tenure_category":   r.TenureCategory,
		"spend_segment":     r.SpendSegment,
		"frequency_segment": r.FrequencySegment,
		"engagement_level":  r.EngagementLevel,
		"ticket_category":   r.TicketCategory,
		"risk_level":        r.RiskLevel,
	}
}
