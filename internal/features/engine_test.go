package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpipe/domain/customer"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
)

func featureConfig() config.FeatureConfig {
	return config.FeatureConfig{
		RecencyBuckets:   [3]float64{30, 90, 180},
		TenureBuckets:    [3]float64{180, 365, 730},
		SpendBuckets:     [3]float64{500, 1500, 5000},
		FrequencyBuckets: [3]float64{10, 30, 100},
		TicketBuckets:    [3]float64{50, 100, 200},

		RecencyWeight:   0.4,
		FrequencyWeight: 0.3,
		SpendWeight:     0.3,

		InactivityDays:         180,
		LowEngagementThreshold: 30,
		RecentActivityDays:     90,
		HighValueSpend:         1500,
		HighValueShipments:     50,
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func cleanRow(id string, signup, purchase *time.Time, spend, shipments float64, label int) customer.CleanRecord {
	return customer.CleanRecord{
		ID:               id,
		NameHash:         "0000000000000000000000000000000000000000000000000000000000000000",
		EmailHash:        "0000000000000000000000000000000000000000000000000000000000000000",
		PhoneHash:        "0000000000000000000000000000000000000000000000000000000000000000",
		AddressHash:      "0000000000000000000000000000000000000000000000000000000000000000",
		SignupDate:       signup,
		LastPurchaseDate: purchase,
		MonthlySpend:     spend,
		TotalShipments:   shipments,
		ChurnLabel:       label,
	}
}

func TestDeriveReferenceDefaultsToLatestPurchase(t *testing.T) {
	e := NewEngine(featureConfig(), logging.DefaultLogger())
	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2022, 1, 1), date(2023, 3, 10), 800, 20, 0),
		cleanRow("C002", date(2022, 1, 1), date(2023, 6, 1), 200, 5, 1),
	}}

	ft, err := e.Derive(table)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), ft.Reference)
	// C002 purchased on the reference date itself.
	assert.Equal(t, 0.0, ft.Records[1].RecencyDays)
	assert.Equal(t, 83.0, ft.Records[0].RecencyDays)
}

func TestDeriveFixedReferenceOverrides(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())
	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2022, 1, 1), date(2023, 3, 10), 800, 20, 0),
	}}

	ft, err := e.Derive(table)
	require.NoError(t, err)
	assert.Equal(t, cfg.ReferenceDate, ft.Reference)
	assert.Equal(t, 296.0, ft.Records[0].RecencyDays)
	assert.Equal(t, "very_inactive", ft.Records[0].RecencyCategory)
}

func TestDeriveBucketEdgesInclusive(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())

	cases := []struct {
		recency float64
		want    string
	}{
		{30, "very_recent"},
		{31, "recent"},
		{90, "recent"},
		{91, "inactive"},
		{180, "inactive"},
		{181, "very_inactive"},
	}
	for _, c := range cases {
		purchase := cfg.ReferenceDate.AddDate(0, 0, -int(c.recency))
		table := &customer.CleanTable{Records: []customer.CleanRecord{
			cleanRow("C001", date(2020, 1, 1), &purchase, 100, 5, 0),
		}}
		ft, err := e.Derive(table)
		require.NoError(t, err)
		assert.Equal(t, c.want, ft.Records[0].RecencyCategory, "recency %v", c.recency)
	}
}

func TestDeriveNullPurchaseDate(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())
	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2023, 5, 1), nil, 100, 5, 1),
	}}

	ft, err := e.Derive(table)
	require.NoError(t, err)
	r := ft.Records[0]
	assert.False(t, r.HasPurchaseDate)
	assert.Equal(t, r.TenureDays, r.RecencyDays)
	assert.Equal(t, "very_inactive", r.RecencyCategory)
	assert.Equal(t, 1, r.RiskInactivity)
	assert.Equal(t, 0, r.ActiveRecent)
}

func TestEngagementScoreBounds(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())

	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2021, 1, 1), date(2023, 5, 30), 5000, 80, 0),
		cleanRow("C002", date(2021, 1, 1), date(2022, 6, 1), 50, 2, 1),
		cleanRow("C003", date(2021, 1, 1), date(2023, 1, 1), 900, 25, 0),
	}}
	ft, err := e.Derive(table)
	require.NoError(t, err)

	for _, r := range ft.Records {
		assert.GreaterOrEqual(t, r.EngagementScore, 0.0)
		assert.LessOrEqual(t, r.EngagementScore, 100.0)
	}
	// The most recent, highest-spend, most frequent customer maxes out.
	assert.Equal(t, 100.0, ft.Records[0].EngagementScore)
	assert.Equal(t, 0.0, ft.Records[1].EngagementScore)
}

func TestEngagementDegenerateBatch(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())

	// Identical metrics: min == max for every component.
	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2021, 1, 1), date(2023, 5, 1), 100, 5, 0),
		cleanRow("C002", date(2021, 1, 1), date(2023, 5, 1), 100, 5, 1),
	}}
	ft, err := e.Derive(table)
	require.NoError(t, err)
	for _, r := range ft.Records {
		assert.False(t, r.EngagementScore < 0 || r.EngagementScore > 100)
		assert.Equal(t, 40.0, r.EngagementScore) // recency component alone
	}
}

func TestRiskScoreAndLevel(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())

	table := &customer.CleanTable{Records: []customer.CleanRecord{
		// New signup, long inactive, low everything: all three flags fire.
		cleanRow("C001", date(2023, 4, 1), date(2022, 6, 1), 10, 1, 1),
		// Active high-value veteran: no flags.
		cleanRow("C002", date(2020, 1, 1), date(2023, 5, 30), 5000, 80, 0),
	}}
	ft, err := e.Derive(table)
	require.NoError(t, err)

	risky := ft.Records[0]
	assert.Equal(t, 1, risky.RiskInactivity)
	assert.Equal(t, 1, risky.RiskLowEngagement)
	assert.Equal(t, 1, risky.RiskNewInactive)
	assert.Equal(t, 6.0, risky.RiskScore)
	assert.Equal(t, "critical", risky.RiskLevel)

	safe := ft.Records[1]
	assert.Equal(t, 0.0, safe.RiskScore)
	assert.Equal(t, "low", safe.RiskLevel)
}

func TestBehaviorFeatures(t *testing.T) {
	cfg := featureConfig()
	cfg.ReferenceDate = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	e := NewEngine(cfg, logging.DefaultLogger())

	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2023, 1, 2), date(2023, 5, 1), 1200, 10, 0),
		cleanRow("C002", date(2023, 1, 2), date(2023, 5, 1), 2000, 0, 0),
	}}
	ft, err := e.Derive(table)
	require.NoError(t, err)

	r := ft.Records[0]
	assert.Equal(t, 120.0, r.SpendPerShipment)
	assert.Equal(t, "high", r.TicketCategory)
	assert.Equal(t, 15.0, r.DaysBetweenPurchases)
	assert.Equal(t, 1, r.ActiveRecent)
	assert.Equal(t, 0, r.HighValue)

	// Zero shipments must not divide.
	z := ft.Records[1]
	assert.Equal(t, 0.0, z.SpendPerShipment)
	assert.Equal(t, z.TenureDays, z.DaysBetweenPurchases)
	assert.Equal(t, 1, z.HighValue)
}

func TestDeriveDeterministic(t *testing.T) {
	e := NewEngine(featureConfig(), logging.DefaultLogger())
	table := &customer.CleanTable{Records: []customer.CleanRecord{
		cleanRow("C001", date(2022, 1, 1), date(2023, 3, 10), 800, 20, 0),
		cleanRow("C002", date(2021, 7, 1), date(2023, 1, 15), 3200, 44, 1),
	}}
	a, err := e.Derive(table)
	require.NoError(t, err)
	b, err := e.Derive(table)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveEmptyTableFails(t *testing.T) {
	e := NewEngine(featureConfig(), logging.DefaultLogger())
	_, err := e.Derive(&customer.CleanTable{})
	assert.Error(t, err)
}
