package cleaning

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/domain/pii"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
)

// Engine owns the raw-to-clean transition. It applies a fixed, ordered, total
// transformation: dedup, date normalization, type coercion, outlier capping,
// null handling, PII hashing, then a quality gate. Row-level problems are
// repaired or dropped and counted; a residual invariant violation after
// repair aborts the stage with no output.
type Engine struct {
	cfg    config.CleaningConfig
	hasher *pii.Hasher
	log    *logging.Logger
}

// NewEngine creates a cleaning engine bound to an immutable configuration.
func NewEngine(cfg config.CleaningConfig, log *logging.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		hasher: pii.NewHasher(cfg.HashSalt),
		log:    log,
	}
}

// Stats counts every repair and drop the engine performed.
type Stats struct {
	InputRows        int `json:"input_rows"`
	ExactDuplicates  int `json:"exact_duplicates"`
	IDDuplicates     int `json:"id_duplicates"`
	UnparsableDates  int `json:"unparsable_dates"`
	NonNumericValues int `json:"non_numeric_values"`
	NegativeSpend    int `json:"negative_spend_corrected"`
	SpendCapped      int `json:"spend_capped"`
	ShipmentsCapped  int `json:"shipments_capped"`
	PhoneImputed     int `json:"phone_imputed"`
	SpendImputed     int `json:"spend_imputed"`
	ShipmentsImputed int `json:"shipments_imputed"`
	DroppedUnlabeled int `json:"dropped_unlabeled"`
	OutputRows       int `json:"output_rows"`
}

// parsedRow is the intermediate shape between coercion and null handling.
type parsedRow struct {
	raw       customer.RawRecord
	signup    *time.Time
	purchase  *time.Time
	spend     *float64
	shipments *float64
	label     *int
}

// Clean runs the full transformation over one batch. On a quality-gate
// failure it returns a nil table: the stage writes no partial artifact.
func (e *Engine) Clean(batch []customer.RawRecord) (*customer.CleanTable, Stats, error) {
	var st Stats
	st.InputRows = len(batch)

	rows := e.dropExactDuplicates(batch, &st)
	rows = e.resolveIDDuplicates(rows, &st)

	parsed := e.parseRows(rows, &st)
	e.capOutliers(parsed, &st)
	parsed = e.handleNulls(parsed, &st)

	table := e.hashAndAssemble(parsed)
	st.OutputRows = len(table.Records)

	if err := e.qualityGate(table); err != nil {
		return nil, st, err
	}

	e.log.Info("cleaning complete: %d rows in, %d rows out (%d exact dups, %d id dups, %d unlabeled dropped)",
		st.InputRows, st.OutputRows, st.ExactDuplicates, st.IDDuplicates, st.DroppedUnlabeled)
	return table, st, nil
}

// dropExactDuplicates collapses rows identical in every column to one.
func (e *Engine) dropExactDuplicates(batch []customer.RawRecord, st *Stats) []customer.RawRecord {
	seen := make(map[string]struct{}, len(batch))
	out := make([]customer.RawRecord, 0, len(batch))
	for _, r := range batch {
		key := strings.Join([]string{
			r.ID, r.Name, r.Email, r.Phone, r.Address,
			r.SignupDate, r.LastPurchaseDate, r.MonthlySpend, r.TotalShipments, r.ChurnLabel,
		}, "\x1f")
		if _, dup := seen[key]; dup {
			st.ExactDuplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// resolveIDDuplicates keeps, per customer id, the row with the latest valid
// last_purchase_date; ties and all-invalid groups keep the first occurrence.
func (e *Engine) resolveIDDuplicates(rows []customer.RawRecord, st *Stats) []customer.RawRecord {
	type kept struct {
		index     int
		date      time.Time
		validDate bool
	}
	best := make(map[string]kept, len(rows))

	for i, r := range rows {
		date, valid := ParseDate(r.LastPurchaseDate)
		cur, exists := best[r.ID]
		if !exists {
			best[r.ID] = kept{index: i, date: date, validDate: valid}
			continue
		}
		st.IDDuplicates++
		// Strictly-after replaces; equal dates keep the earlier row.
		if valid && (!cur.validDate || date.After(cur.date)) {
			best[r.ID] = kept{index: i, date: date, validDate: valid}
		}
	}

	indices := make([]int, 0, len(best))
	for _, k := range best {
		indices = append(indices, k.index)
	}
	sort.Ints(indices)

	out := make([]customer.RawRecord, 0, len(indices))
	for _, i := range indices {
		out = append(out, rows[i])
	}
	return out
}

// parseRows normalizes dates and coerces numerics. Unparsable dates and
// non-numeric values are recoverable: the field becomes null and the row
// stays.
func (e *Engine) parseRows(rows []customer.RawRecord, st *Stats) []parsedRow {
	parsed := make([]parsedRow, 0, len(rows))
	for _, r := range rows {
		p := parsedRow{raw: r}

		if t, ok := ParseDate(r.SignupDate); ok {
			p.signup = &t
		} else if !isMissing(r.SignupDate) {
			st.UnparsableDates++
		}
		if t, ok := ParseDate(r.LastPurchaseDate); ok {
			p.purchase = &t
		} else if !isMissing(r.LastPurchaseDate) {
			st.UnparsableDates++
		}

		if v, ok := ParseNumeric(r.MonthlySpend); ok {
			p.spend = &v
		} else if !isMissing(r.MonthlySpend) {
			st.NonNumericValues++
		}
		if v, ok := ParseNumeric(r.TotalShipments); ok {
			p.shipments = &v
		} else if !isMissing(r.TotalShipments) {
			st.NonNumericValues++
		}

		if l, ok := ParseLabel(r.ChurnLabel); ok {
			p.label = &l
		}

		parsed = append(parsed, p)
	}
	return parsed
}

// capOutliers applies the fixed business-rule caps. Capping runs before
// imputation so medians are computed over already-bounded values.
func (e *Engine) capOutliers(rows []parsedRow, st *Stats) {
	for i := range rows {
		if s := rows[i].spend; s != nil {
			switch {
			case *s < 0:
				*s = 0
				st.NegativeSpend++
			case *s > e.cfg.CapSpend:
				*s = e.cfg.CapSpend
				st.SpendCapped++
			}
		}
		if n := rows[i].shipments; n != nil {
			switch {
			case *n < 0:
				*n = 0
				st.ShipmentsCapped++
			case *n > e.cfg.CapShipments:
				*n = e.cfg.CapShipments
				st.ShipmentsCapped++
			}
		}
	}
}

// handleNulls applies the per-column strategy: phone becomes the sentinel
// category, spend/shipments take the batch median of the capped non-null
// values, and unlabeled rows are dropped since they can neither train nor
// validate a model.
func (e *Engine) handleNulls(rows []parsedRow, st *Stats) []parsedRow {
	spendMedian := e.columnMedian(rows, func(p parsedRow) *float64 { return p.spend })
	shipMedian := e.columnMedian(rows, func(p parsedRow) *float64 { return p.shipments })

	out := make([]parsedRow, 0, len(rows))
	for _, p := range rows {
		if p.label == nil {
			st.DroppedUnlabeled++
			continue
		}
		if isMissing(p.raw.Phone) {
			p.raw.Phone = e.cfg.PhoneSentinel
			st.PhoneImputed++
		}
		if p.spend == nil {
			v := spendMedian
			p.spend = &v
			st.SpendImputed++
		}
		if p.shipments == nil {
			v := shipMedian
			p.shipments = &v
			st.ShipmentsImputed++
		}
		out = append(out, p)
	}
	return out
}

// columnMedian computes the median of the non-null values of one column.
func (e *Engine) columnMedian(rows []parsedRow, get func(parsedRow) *float64) float64 {
	values := make([]float64, 0, len(rows))
	for _, p := range rows {
		if v := get(p); v != nil {
			values = append(values, *v)
		}
	}
	if len(values) == 0 {
		e.log.Warn("no observed values for imputation, falling back to 0")
		return 0
	}
	median, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return median
}

// hashAndAssemble applies the PII hasher and builds the clean table. Values
// that are already digests pass through unchanged, which makes cleaning
// idempotent on its own output.
func (e *Engine) hashAndAssemble(rows []parsedRow) *customer.CleanTable {
	records := make([]customer.CleanRecord, 0, len(rows))
	for _, p := range rows {
		records = append(records, customer.CleanRecord{
			ID:               p.raw.ID,
			NameHash:         e.hasher.HashPreserving(p.raw.Name),
			EmailHash:        e.hasher.HashPreserving(p.raw.Email),
			PhoneHash:        e.hasher.HashPreserving(p.raw.Phone),
			AddressHash:      e.hasher.HashPreserving(p.raw.Address),
			SignupDate:       p.signup,
			LastPurchaseDate: p.purchase,
			MonthlySpend:     *p.spend,
			TotalShipments:   *p.shipments,
			ChurnLabel:       *p.label,
		})
	}
	return &customer.CleanTable{Records: records}
}

// qualityGate re-checks every invariant the clean tier promises. Any
// violation here means repair failed: fatal, non-retryable, no output.
func (e *Engine) qualityGate(table *customer.CleanTable) error {
	ids := make(map[string]struct{}, len(table.Records))
	for i, r := range table.Records {
		if _, dup := ids[r.ID]; dup {
			return core.NewDataQualityError("cleaning", fmt.Sprintf("duplicate id %s at row %d", r.ID, i))
		}
		ids[r.ID] = struct{}{}

		if r.MonthlySpend < 0 || r.MonthlySpend > e.cfg.CapSpend {
			return core.NewDataQualityError("cleaning",
				fmt.Sprintf("monthly_spend %.2f outside [0, %.0f] for id %s", r.MonthlySpend, e.cfg.CapSpend, r.ID))
		}
		if r.TotalShipments < 0 || r.TotalShipments > e.cfg.CapShipments {
			return core.NewDataQualityError("cleaning",
				fmt.Sprintf("total_shipments %.2f outside [0, %.0f] for id %s", r.TotalShipments, e.cfg.CapShipments, r.ID))
		}
		if r.ChurnLabel != 0 && r.ChurnLabel != 1 {
			return core.NewDataQualityError("cleaning", fmt.Sprintf("churn_label %d not binary for id %s", r.ChurnLabel, r.ID))
		}
		for field, digest := range map[string]string{
			"full_name_hash":    r.NameHash,
			"email_hash":        r.EmailHash,
			"phone_hash":        r.PhoneHash,
			"home_address_hash": r.AddressHash,
		} {
			if !pii.IsDigest(digest) {
				return core.NewDataQualityError("cleaning", fmt.Sprintf("%s is not a digest for id %s", field, r.ID))
			}
		}
	}
	return nil
}

// RawFromClean converts a clean table back into raw-record form. Digests stay
// in the PII columns and dates render in the canonical layout, so feeding the
// result through Clean again reproduces the table unchanged.
func RawFromClean(table *customer.CleanTable) []customer.RawRecord {
	rows := make([]customer.RawRecord, 0, len(table.Records))
	for _, r := range table.Records {
		rows = append(rows, customer.RawRecord{
			ID:               r.ID,
			Name:             r.NameHash,
			Email:            r.EmailHash,
			Phone:            r.PhoneHash,
			Address:          r.AddressHash,
			SignupDate:       formatDate(r.SignupDate),
			LastPurchaseDate: formatDate(r.LastPurchaseDate),
			MonthlySpend:     strconv.FormatFloat(r.MonthlySpend, 'f', -1, 64),
			TotalShipments:   strconv.FormatFloat(r.TotalShipments, 'f', -1, 64),
			ChurnLabel:       strconv.Itoa(r.ChurnLabel),
		})
	}
	return rows
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
