package testkit

import (
	"fmt"
	"math/rand"
	"time"

	"churnpipe/domain/customer"
)

// CustomerGeneratorConfig configures the dirty customer batch generator.
type CustomerGeneratorConfig struct {
	CustomerCount      int       `json:"customer_count"`
	ExactDupRate       float64   `json:"exact_dup_rate"`
	IDDupRate          float64   `json:"id_dup_rate"`
	MissingRate        float64   `json:"missing_rate"`
	GarbageNumericRate float64   `json:"garbage_numeric_rate"`
	MixedDateRate      float64   `json:"mixed_date_rate"`
	ChurnRate          float64   `json:"churn_rate"`
	ReferenceDate      time.Time `json:"reference_date"`
	Seed               int64     `json:"seed"`
}

// DefaultCustomerConfig returns defaults producing a realistically dirty
// batch: some duplication, some missing values, some garbage numerics.
func DefaultCustomerConfig() CustomerGeneratorConfig {
	return CustomerGeneratorConfig{
		CustomerCount:      200,
		ExactDupRate:       0.05,
		IDDupRate:          0.05,
		MissingRate:        0.08,
		GarbageNumericRate: 0.03,
		MixedDateRate:      0.25,
		ChurnRate:          0.3,
		ReferenceDate:      time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Seed:               42,
	}
}

// CustomerGenerator produces seeded synthetic raw customer batches with the
// defects the cleaning stage must repair. Churn correlates with recency so
// trained models have signal to find.
type CustomerGenerator struct {
	config CustomerGeneratorConfig
	rng    *rand.Rand
}

func NewCustomerGenerator(config CustomerGeneratorConfig) *CustomerGenerator {
	return &CustomerGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateBatch produces the full dirty batch.
func (g *CustomerGenerator) GenerateBatch() []customer.RawRecord {
	records := make([]customer.RawRecord, 0, g.config.CustomerCount)
	for i := 0; i < g.config.CustomerCount; i++ {
		rec := g.generateCustomer(i)
		records = append(records, rec)

		if g.rng.Float64() < g.config.ExactDupRate {
			records = append(records, rec)
		}
		if g.rng.Float64() < g.config.IDDupRate {
			variant := g.generateCustomer(i)
			variant.ID = rec.ID
			records = append(records, variant)
		}
	}
	return records
}

func (g *CustomerGenerator) generateCustomer(i int) customer.RawRecord {
	churned := g.rng.Float64() < g.config.ChurnRate

	signup := g.config.ReferenceDate.AddDate(0, 0, -(30 + g.rng.Intn(1000)))

	// Churned customers purchased long ago; active ones recently.
	var recencyDays int
	if churned {
		recencyDays = 120 + g.rng.Intn(400)
	} else {
		recencyDays = g.rng.Intn(120)
	}
	purchase := g.config.ReferenceDate.AddDate(0, 0, -recencyDays)
	if purchase.Before(signup) {
		purchase = signup
	}

	spend := 20 + g.rng.Float64()*3000
	shipments := 1 + g.rng.Intn(80)
	if churned {
		spend *= 0.4
		shipments = 1 + shipments/4
	}

	rec := customer.RawRecord{
		ID:               fmt.Sprintf("C%05d", i+1),
		Name:             fmt.Sprintf("Customer %05d", i+1),
		Email:            fmt.Sprintf("customer%05d@example.com", i+1),
		Phone:            fmt.Sprintf("+34 6%08d", g.rng.Intn(100000000)),
		Address:          fmt.Sprintf("Street %d, Apt %d", g.rng.Intn(200)+1, g.rng.Intn(50)+1),
		SignupDate:       g.formatDate(signup),
		LastPurchaseDate: g.formatDate(purchase),
		MonthlySpend:     fmt.Sprintf("%.2f", spend),
		TotalShipments:   fmt.Sprintf("%d", shipments),
		ChurnLabel:       boolLabel(churned),
	}
	g.injectDefects(&rec)
	return rec
}

// formatDate emits mixed layouts at the configured rate.
func (g *CustomerGenerator) formatDate(t time.Time) string {
	if g.rng.Float64() < g.config.MixedDateRate {
		switch g.rng.Intn(3) {
		case 0:
			return t.Format("02/01/2006")
		case 1:
			return t.Format("02-01-2006")
		default:
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return t.Format("2006-01-02")
}

func (g *CustomerGenerator) injectDefects(rec *customer.RawRecord) {
	if g.rng.Float64() < g.config.MissingRate {
		rec.Phone = pick(g.rng, "", "null", "N/A")
	}
	if g.rng.Float64() < g.config.MissingRate {
		rec.LastPurchaseDate = pick(g.rng, "", "none", "not a date")
	}
	if g.rng.Float64() < g.config.GarbageNumericRate {
		rec.MonthlySpend = pick(g.rng, "abc", "", "$1,2x0")
	}
	if g.rng.Float64() < g.config.GarbageNumericRate {
		rec.MonthlySpend = fmt.Sprintf("%.2f", -(10 + g.rng.Float64()*100))
	}
	if g.rng.Float64() < g.config.GarbageNumericRate {
		rec.MonthlySpend = fmt.Sprintf("%.2f", 20000+g.rng.Float64()*10000)
	}
	if g.rng.Float64() < g.config.MissingRate/2 {
		rec.ChurnLabel = pick(g.rng, "", "null")
	}
}

func boolLabel(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.Intn(len(options))]
}
