package customer

import (
	"time"

	"churnpipe/domain/core"
)

// RawRecord is one row of the ingested customer table, exactly as it arrived.
// Every field is a string because the raw tier preserves the source formats:
// dates come in mixed layouts and numerics may be garbage, empty or "NULL".
type RawRecord struct {
	ID               string `json:"customer_id"`
	Name             string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"home_address"`
	SignupDate       string `json:"signup_date"`
	LastPurchaseDate string `json:"last_purchase_date"`
	MonthlySpend     string `json:"monthly_spend"`
	TotalShipments   string `json:"total_shipments"`
	ChurnLabel       string `json:"churn_label"`
}

// CleanRecord is one governed row. Invariants held by the cleaning engine:
// IDs are pairwise distinct across the table, dates are canonical or nil,
// MonthlySpend and TotalShipments sit inside the configured caps, ChurnLabel
// is always 0 or 1, and the four PII fields carry fixed-length digests.
type CleanRecord struct {
	ID               string     `json:"customer_id"`
	NameHash         string     `json:"full_name_hash"`
	EmailHash        string     `json:"email_hash"`
	PhoneHash        string     `json:"phone_hash"`
	AddressHash      string     `json:"home_address_hash"`
	SignupDate       *time.Time `json:"signup_date"`
	LastPurchaseDate *time.Time `json:"last_purchase_date"`
	MonthlySpend     float64    `json:"monthly_spend"`
	TotalShipments   float64    `json:"total_shipments"`
	ChurnLabel       int        `json:"churn_label"`
}

// FeatureRecord is one model-ready row: the clean row plus every derived
// feature. All numeric fields are finite; the feature engine refuses to
// export otherwise.
type FeatureRecord struct {
	CleanRecord

	RecencyDays     float64 `json:"recency_days"`
	TenureDays      float64 `json:"tenure_days"`
	HasPurchaseDate bool    `json:"has_purchase_date"`

	RecencyCategory  string `json:"recency_category"`
	TenureCategory   string `json:"tenure_category"`
	SpendSegment     string `json:"spend_segment"`
	FrequencySegment string `json:"frequency_segment"`

	EngagementScore float64 `json:"engagement_score"`
	EngagementLevel string  `json:"engagement_level"`

	SpendPerShipment     float64 `json:"spend_per_shipment"`
	TicketCategory       string  `json:"ticket_category"`
	DaysBetweenPurchases float64 `json:"days_between_purchases"`
	ActiveRecent         int     `json:"active_recent"`
	HighValue            int     `json:"high_value"`

	RiskInactivity    int     `json:"risk_inactivity"`
	RiskLowEngagement int     `json:"risk_low_engagement"`
	RiskNewInactive   int     `json:"risk_new_inactive"`
	RiskScore         float64 `json:"risk_score"`
	RiskLevel         string  `json:"risk_level"`

	// Encoded holds the one-hot indicators in vocabulary order.
	Encoded []float64 `json:"encoded,omitempty"`
}

// CleanTable is the sole artifact of the cleaning engine.
type CleanTable struct {
	Records []CleanRecord `json:"records"`
}

// FeatureTable is the sole artifact of the feature engine. Reference is the
// fixed timestamp every temporal feature in the table was computed against.
type FeatureTable struct {
	Records   []FeatureRecord `json:"records"`
	Reference time.Time       `json:"reference"`
}

// IngestAudit summarizes the raw batch as delivered by the ingestion
// collaborator. The pipeline logs it but never depends on it for correctness.
type IngestAudit struct {
	Rows            int            `json:"rows"`
	Columns         []string       `json:"columns"`
	ExactDuplicates int            `json:"exact_duplicates"`
	DuplicateIDs    int            `json:"duplicate_ids"`
	Source          string         `json:"source"`
	ReadAt          core.Timestamp `json:"read_at"`
}

// Len returns the number of rows in the clean table.
func (t *CleanTable) Len() int { return len(t.Records) }

// Len returns the number of rows in the feature table.
func (t *FeatureTable) Len() int { return len(t.Records) }

// Labels extracts the churn labels in row order.
func (t *FeatureTable) Labels() []int {
	labels := make([]int, len(t.Records))
	for i, r := range t.Records {
		labels[i] = r.ChurnLabel
	}
	return labels
}
