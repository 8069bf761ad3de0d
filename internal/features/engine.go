package features

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
)

// Tier names for the four-level categorical features.
var (
	recencyTiers    = [4]string{"very_recent", "recent", "inactive", "very_inactive"}
	tenureTiers     = [4]string{"new", "established", "veteran", "longstanding"}
	spendTiers      = [4]string{"low", "medium", "high", "premium"}
	frequencyTiers  = [4]string{"occasional", "regular", "frequent", "vip"}
	ticketTiers     = [4]string{"low", "medium", "high", "premium"}
	engagementTiers = [4]string{"low", "moderate", "high", "very_high"}
	riskTiers       = [4]string{"low", "medium", "high", "critical"}

	engagementEdges = [3]float64{25, 50, 75}
	riskEdges       = [3]float64{0, 2, 4}
)

// Engine derives the model-ready feature table from a clean table. The
// derivation is pure and deterministic: same clean table, same reference
// timestamp, same configuration, same output.
type Engine struct {
	cfg config.FeatureConfig
	log *logging.Logger
}

func NewEngine(cfg config.FeatureConfig, log *logging.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// Derive computes every feature against a single reference timestamp. When
// the configuration carries no fixed reference, the latest valid
// last_purchase_date in the batch anchors the run.
func (e *Engine) Derive(clean *customer.CleanTable) (*customer.FeatureTable, error) {
	if clean == nil || len(clean.Records) == 0 {
		return nil, core.NewMissingPrerequisiteError("features", "clean table")
	}

	ref := e.resolveReference(clean)
	table := &customer.FeatureTable{
		Records:   make([]customer.FeatureRecord, 0, len(clean.Records)),
		Reference: ref,
	}

	for _, cr := range clean.Records {
		table.Records = append(table.Records, e.deriveRow(cr, ref))
	}

	e.scoreEngagement(table)
	e.scoreRisk(table)

	vocab := BuildVocabulary(table)
	for i := range table.Records {
		table.Records[i].Encoded = vocab.Encode(&table.Records[i])
	}

	if err := e.exportGate(table); err != nil {
		return nil, err
	}

	e.log.Info("feature derivation complete: %d rows, reference %s, %d encoded columns",
		len(table.Records), ref.Format("2006-01-02"), vocab.Width())
	return table, nil
}

// resolveReference picks the anchor timestamp for temporal features.
func (e *Engine) resolveReference(clean *customer.CleanTable) time.Time {
	if !e.cfg.ReferenceDate.IsZero() {
		return e.cfg.ReferenceDate
	}
	var latest time.Time
	for _, r := range clean.Records {
		if r.LastPurchaseDate != nil && r.LastPurchaseDate.After(latest) {
			latest = *r.LastPurchaseDate
		}
	}
	if latest.IsZero() {
		e.log.Warn("no valid last_purchase_date in batch, anchoring on current date")
		latest = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return latest
}

// deriveRow computes the per-row features that need no batch context.
func (e *Engine) deriveRow(cr customer.CleanRecord, ref time.Time) customer.FeatureRecord {
	fr := customer.FeatureRecord{CleanRecord: cr}

	if cr.SignupDate != nil {
		fr.TenureDays = daysBetween(*cr.SignupDate, ref)
	}
	if cr.LastPurchaseDate != nil {
		fr.HasPurchaseDate = true
		fr.RecencyDays = daysBetween(*cr.LastPurchaseDate, ref)
	} else {
		// A customer who never purchased is treated as inactive for their
		// whole tenure: bounded, finite, maximally stale.
		fr.RecencyDays = fr.TenureDays
	}

	fr.RecencyCategory = bucket(fr.RecencyDays, e.cfg.RecencyBuckets, recencyTiers)
	if !fr.HasPurchaseDate {
		fr.RecencyCategory = recencyTiers[3]
	}
	fr.TenureCategory = bucket(fr.TenureDays, e.cfg.TenureBuckets, tenureTiers)
	fr.SpendSegment = bucket(cr.MonthlySpend, e.cfg.SpendBuckets, spendTiers)
	fr.FrequencySegment = bucket(cr.TotalShipments, e.cfg.FrequencyBuckets, frequencyTiers)

	if cr.TotalShipments > 0 {
		fr.SpendPerShipment = cr.MonthlySpend / cr.TotalShipments
		fr.DaysBetweenPurchases = fr.TenureDays / cr.TotalShipments
	} else {
		fr.DaysBetweenPurchases = fr.TenureDays
	}
	fr.TicketCategory = bucket(fr.SpendPerShipment, e.cfg.TicketBuckets, ticketTiers)

	if fr.HasPurchaseDate && fr.RecencyDays <= e.cfg.RecentActivityDays {
		fr.ActiveRecent = 1
	}
	if cr.MonthlySpend > e.cfg.HighValueSpend || cr.TotalShipments > e.cfg.HighValueShipments {
		fr.HighValue = 1
	}
	return fr
}

// scoreEngagement computes the weighted composite score. Each component is
// min-max normalized over the batch; recency is inverted so that more recent
// means more engaged. Rows without a purchase date contribute a zero recency
// component and are excluded from the recency range.
func (e *Engine) scoreEngagement(table *customer.FeatureTable) {
	var recency, spend, freq []float64
	for _, r := range table.Records {
		if r.HasPurchaseDate {
			recency = append(recency, r.RecencyDays)
		}
		spend = append(spend, r.MonthlySpend)
		freq = append(freq, r.TotalShipments)
	}
	recMin, recMax := rangeOf(recency)
	spendMin, spendMax := rangeOf(spend)
	freqMin, freqMax := rangeOf(freq)

	wSum := e.cfg.RecencyWeight + e.cfg.FrequencyWeight + e.cfg.SpendWeight
	for i := range table.Records {
		r := &table.Records[i]
		recComponent := 0.0
		if r.HasPurchaseDate {
			recComponent = 1 - minMax(r.RecencyDays, recMin, recMax)
		}
		raw := e.cfg.RecencyWeight*recComponent +
			e.cfg.FrequencyWeight*minMax(r.TotalShipments, freqMin, freqMax) +
			e.cfg.SpendWeight*minMax(r.MonthlySpend, spendMin, spendMax)
		score := 100 * clamp01(raw/wSum)

		r.EngagementScore = score
		r.EngagementLevel = bucket(score, engagementEdges, engagementTiers)
	}
}

// scoreRisk sets the three binary flags and the weighted risk score.
func (e *Engine) scoreRisk(table *customer.FeatureTable) {
	for i := range table.Records {
		r := &table.Records[i]
		if r.RecencyDays > e.cfg.InactivityDays || !r.HasPurchaseDate {
			r.RiskInactivity = 1
		}
		if r.EngagementScore < e.cfg.LowEngagementThreshold {
			r.RiskLowEngagement = 1
		}
		if r.TenureDays < e.cfg.TenureBuckets[0] && r.RecencyDays > e.cfg.RecentActivityDays {
			r.RiskNewInactive = 1
		}
		r.RiskScore = 3*float64(r.RiskInactivity) + 2*float64(r.RiskLowEngagement) + float64(r.RiskNewInactive)
		r.RiskLevel = bucket(r.RiskScore, riskEdges, riskTiers)
	}
}

// exportGate verifies every numeric feature is finite before the table can
// leave the stage.
func (e *Engine) exportGate(table *customer.FeatureTable) error {
	for _, r := range table.Records {
		values := []float64{
			r.RecencyDays, r.TenureDays, r.EngagementScore, r.SpendPerShipment,
			r.DaysBetweenPurchases, r.RiskScore,
		}
		values = append(values, r.Encoded...)
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: id %s", core.ErrNonFiniteFeature, r.ID)
			}
		}
	}
	return nil
}

// bucket assigns a value to one of four tiers using inclusive upper edges.
func bucket(v float64, edges [3]float64, tiers [4]string) string {
	switch {
	case v <= edges[0]:
		return tiers[0]
	case v <= edges[1]:
		return tiers[1]
	case v <= edges[2]:
		return tiers[2]
	default:
		return tiers[3]
	}
}

func daysBetween(from, to time.Time) float64 {
	d := to.Sub(from).Hours() / 24
	if d < 0 {
		return 0
	}
	return math.Floor(d)
}

// rangeOf returns the min and max of a column, or a degenerate (0, 0) range
// for an empty one.
func rangeOf(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}

func minMax(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp01((v - lo) / (hi - lo))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
