package ml

import (
	"churnpipe/domain/customer"
)

// numericColumns is the fixed order of the dense numeric features in the
// design matrix, ahead of the one-hot block.
var numericColumns = []string{
	"recency_days",
	"tenure_days",
	"monthly_spend",
	"total_shipments",
	"engagement_score",
	"spend_per_shipment",
	"days_between_purchases",
	"has_purchase_date",
	"active_recent",
	"high_value",
	"risk_inactivity",
	"risk_low_engagement",
	"risk_new_inactive",
	"risk_score",
}

// Matrix is the model-ready design matrix: one row per customer, numeric
// features first, then the frozen one-hot block.
type Matrix struct {
	X     [][]float64
	Y     []int
	Names []string
}

// BuildMatrix flattens a feature table into the design matrix. Row order is
// preserved so split indices map back to customers.
func BuildMatrix(table *customer.FeatureTable, encodedNames []string) *Matrix {
	names := make([]string, 0, len(numericColumns)+len(encodedNames))
	names = append(names, numericColumns...)
	names = append(names, encodedNames...)

	m := &Matrix{
		X:     make([][]float64, len(table.Records)),
		Y:     table.Labels(),
		Names: names,
	}
	for i, r := range table.Records {
		row := make([]float64, 0, len(names))
		row = append(row,
			r.RecencyDays,
			r.TenureDays,
			r.MonthlySpend,
			r.TotalShipments,
			r.EngagementScore,
			r.SpendPerShipment,
			r.DaysBetweenPurchases,
			boolToFloat(r.HasPurchaseDate),
			float64(r.ActiveRecent),
			float64(r.HighValue),
			float64(r.RiskInactivity),
			float64(r.RiskLowEngagement),
			float64(r.RiskNewInactive),
			r.RiskScore,
		)
		row = append(row, r.Encoded...)
		m.X[i] = row
	}
	return m
}

// Select returns the sub-matrix at the given row indices. Rows are shared,
// not copied.
func (m *Matrix) Select(indices []int) ([][]float64, []int) {
	x := make([][]float64, len(indices))
	y := make([]int, len(indices))
	for i, idx := range indices {
		x[i] = m.X[idx]
		y[i] = m.Y[idx]
	}
	return x, y
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
