package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnpipe/domain/customer"
)

func featureRow(recency, spend string) customer.FeatureRecord {
	return customer.FeatureRecord{
		RecencyCategory:  recency,
		TenureCategory:   "veteran",
		SpendSegment:     spend,
		FrequencySegment: "regular",
		EngagementLevel:  "moderate",
		TicketCategory:   "medium",
		RiskLevel:        "low",
	}
}

func TestVocabularyDeterministicOrder(t *testing.T) {
	a := &customer.FeatureTable{Records: []customer.FeatureRecord{
		featureRow("recent", "low"), featureRow("very_recent", "high"),
	}}
	b := &customer.FeatureTable{Records: []customer.FeatureRecord{
		featureRow("very_recent", "high"), featureRow("recent", "low"),
	}}
	va := BuildVocabulary(a)
	vb := BuildVocabulary(b)
	assert.Equal(t, va.EncodedNames(), vb.EncodedNames())
	assert.Equal(t, []string{"recent", "very_recent"}, va.Columns["recency_category"])
}

func TestEncodeOneHot(t *testing.T) {
	table := &customer.FeatureTable{Records: []customer.FeatureRecord{
		featureRow("recent", "low"), featureRow("very_recent", "high"),
	}}
	v := BuildVocabulary(table)

	row := featureRow("recent", "low")
	enc := v.Encode(&row)
	require.Len(t, enc, v.Width())

	sum := 0.0
	for _, x := range enc {
		sum += x
	}
	// Exactly one indicator per categorical column.
	assert.Equal(t, float64(len(v.Columns)), sum)
}

func TestEncodeOutOfVocabularyAllZeros(t *testing.T) {
	table := &customer.FeatureTable{Records: []customer.FeatureRecord{
		featureRow("recent", "low"),
	}}
	v := BuildVocabulary(table)

	unseen := featureRow("very_inactive", "low")
	enc := v.Encode(&unseen)
	require.Len(t, enc, v.Width())

	names := v.EncodedNames()
	for i, name := range names {
		if name == "recency_category=recent" {
			assert.Equal(t, 0.0, enc[i], "unseen value must not borrow a known column")
		}
	}
	// The recency block is all zeros; every other column still encodes.
	sum := 0.0
	for _, x := range enc {
		sum += x
	}
	assert.Equal(t, float64(len(v.Columns)-1), sum)
}
