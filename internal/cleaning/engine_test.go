package cleaning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/domain/pii"
	"churnpipe/internal/config"
	"churnpipe/internal/logging"
)

func testEngine() *Engine {
	cfg := config.CleaningConfig{
		CapSpend:      15000,
		CapShipments:  500,
		PhoneSentinel: "MISSING",
		HashSalt:      "test_salt",
	}
	return NewEngine(cfg, logging.DefaultLogger())
}

// rawRecord aliases the raw customer record so fixtures read compactly.
type rawRecord = customer.RawRecord

func rawRow(id string) rawRecord {
	return rawRecord{
		ID:               id,
		Name:             "Ana Torres",
		Email:            "ana@example.com",
		Phone:            "+34 600 000 001",
		Address:          "Calle Mayor 1",
		SignupDate:       "2022-06-01",
		LastPurchaseDate: "2023-03-10",
		MonthlySpend:     "250.50",
		TotalShipments:   "12",
		ChurnLabel:       "0",
	}
}

func TestCleanExactDuplicates(t *testing.T) {
	e := testEngine()
	r := rawRow("C001")
	table, st, err := e.Clean([]rawRecord{r, r, r})
	require.NoError(t, err)
	assert.Equal(t, 2, st.ExactDuplicates)
	assert.Len(t, table.Records, 1)
}

func TestCleanIDDuplicateKeepsLatestPurchase(t *testing.T) {
	e := testEngine()
	older := rawRow("C001")
	older.LastPurchaseDate = "2023-01-05"
	older.MonthlySpend = "100"
	newer := rawRow("C001")
	newer.LastPurchaseDate = "2023-03-10"
	newer.MonthlySpend = "200"

	table, st, err := e.Clean([]rawRecord{older, newer})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, 1, st.IDDuplicates)
	assert.Equal(t, 200.0, table.Records[0].MonthlySpend)
	assert.Equal(t, time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), *table.Records[0].LastPurchaseDate)
}

func TestCleanIDDuplicateTieKeepsFirst(t *testing.T) {
	e := testEngine()
	first := rawRow("C001")
	first.MonthlySpend = "100"
	second := rawRow("C001")
	second.MonthlySpend = "999"

	table, _, err := e.Clean([]rawRecord{first, second})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, 100.0, table.Records[0].MonthlySpend)
}

func TestCleanIDDuplicateInvalidDateLoses(t *testing.T) {
	e := testEngine()
	invalid := rawRow("C001")
	invalid.LastPurchaseDate = "not a date"
	invalid.MonthlySpend = "100"
	valid := rawRow("C001")
	valid.MonthlySpend = "200"

	table, _, err := e.Clean([]rawRecord{invalid, valid})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Equal(t, 200.0, table.Records[0].MonthlySpend)
}

func TestCleanCapping(t *testing.T) {
	e := testEngine()
	negative := rawRow("C001")
	negative.MonthlySpend = "-50"
	extreme := rawRow("C002")
	extreme.MonthlySpend = "20000"
	extreme.TotalShipments = "900"

	table, st, err := e.Clean([]rawRecord{negative, extreme})
	require.NoError(t, err)
	assert.Equal(t, 0.0, table.Records[0].MonthlySpend)
	assert.Equal(t, 15000.0, table.Records[1].MonthlySpend)
	assert.Equal(t, 500.0, table.Records[1].TotalShipments)
	assert.Equal(t, 1, st.NegativeSpend)
	assert.Equal(t, 1, st.SpendCapped)
	assert.Equal(t, 1, st.ShipmentsCapped)
}

func TestCleanMedianImputationAfterCapping(t *testing.T) {
	e := testEngine()
	a := rawRow("C001")
	a.MonthlySpend = "100"
	b := rawRow("C002")
	b.MonthlySpend = "300"
	c := rawRow("C003")
	c.MonthlySpend = "50000" // capped to 15000 before the median
	d := rawRow("C004")
	d.MonthlySpend = "" // imputed

	table, st, err := e.Clean([]rawRecord{a, b, c, d})
	require.NoError(t, err)
	assert.Equal(t, 1, st.SpendImputed)
	// median of {100, 300, 15000} = 300
	assert.Equal(t, 300.0, table.Records[3].MonthlySpend)
}

func TestCleanDropsUnlabeledRows(t *testing.T) {
	e := testEngine()
	labeled := rawRow("C001")
	unlabeled := rawRow("C002")
	unlabeled.ChurnLabel = ""
	badLabel := rawRow("C003")
	badLabel.ChurnLabel = "maybe"

	table, st, err := e.Clean([]rawRecord{labeled, unlabeled, badLabel})
	require.NoError(t, err)
	assert.Len(t, table.Records, 1)
	assert.Equal(t, 2, st.DroppedUnlabeled)
}

func TestCleanPhoneSentinelThenHash(t *testing.T) {
	e := testEngine()
	r := rawRow("C001")
	r.Phone = ""

	table, st, err := e.Clean([]rawRecord{r})
	require.NoError(t, err)
	assert.Equal(t, 1, st.PhoneImputed)
	want := pii.NewHasher("test_salt").Hash("MISSING")
	assert.Equal(t, want, table.Records[0].PhoneHash)
	assert.NotEqual(t, pii.SentinelDigest, table.Records[0].PhoneHash)
}

func TestCleanUnparsableDateKeptWithNull(t *testing.T) {
	e := testEngine()
	r := rawRow("C001")
	r.LastPurchaseDate = "garbage"

	table, st, err := e.Clean([]rawRecord{r})
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
	assert.Nil(t, table.Records[0].LastPurchaseDate)
	assert.Equal(t, 1, st.UnparsableDates)
}

func TestCleanIdempotentOnOwnOutput(t *testing.T) {
	e := testEngine()
	rows := []rawRecord{rawRow("C001"), rawRow("C002")}
	rows[1].Email = "otro@example.com"
	rows[1].MonthlySpend = "980.75"

	first, _, err := e.Clean(rows)
	require.NoError(t, err)

	second, st, err := e.Clean(RawFromClean(first))
	require.NoError(t, err)
	assert.Equal(t, 0, st.PhoneImputed)
	assert.Equal(t, first.Records, second.Records)
}

func TestCleanDeterministicOrdering(t *testing.T) {
	e := testEngine()
	rows := []rawRecord{rawRow("C003"), rawRow("C001"), rawRow("C002")}
	for i := range rows {
		rows[i].Email = rows[i].ID + "@example.com"
	}

	a, _, err := e.Clean(rows)
	require.NoError(t, err)
	b, _, err := e.Clean(rows)
	require.NoError(t, err)
	assert.Equal(t, a.Records, b.Records)
	assert.Equal(t, "C003", a.Records[0].ID)
	assert.Equal(t, "C001", a.Records[1].ID)
}

func TestQualityGateViolation(t *testing.T) {
	e := testEngine()
	table, _, err := e.Clean([]rawRecord{rawRow("C001")})
	require.NoError(t, err)

	table.Records[0].MonthlySpend = -1
	err = e.qualityGate(table)
	require.Error(t, err)
	assert.True(t, core.IsDataQualityError(err))
}
