package config

import (
	"os"
	"strconv"
	"time"

	"churnpipe/domain/model"
	"churnpipe/internal/errors"
)

// Config is the complete, immutable configuration for one pipeline run.
// Every threshold the stages apply lives here; components receive it at
// construction and never read the environment themselves.
type Config struct {
	Cleaning CleaningConfig
	Features FeatureConfig
	Training TrainingConfig
	Storage  StorageConfig
	Output   OutputConfig
}

// CleaningConfig holds the governance rules for the raw-to-clean stage.
type CleaningConfig struct {
	// Business-rule caps. Fixed values, not statistically derived: a negative
	// spend is a recording error and a spend above the cap needs review, no
	// matter what the batch distribution looks like.
	CapSpend     float64
	CapShipments float64

	// PhoneSentinel is the category a missing phone is mapped to before
	// hashing. A customer who withheld a phone number is itself a signal.
	PhoneSentinel string

	// HashSalt feeds the PII hasher. Must stay constant across runs.
	HashSalt string
}

// FeatureConfig holds the thresholds and weights for feature derivation.
type FeatureConfig struct {
	// ReferenceDate anchors all temporal features. Zero means "use the latest
	// valid last_purchase_date in the batch".
	ReferenceDate time.Time

	// Bucket edges for the four-tier RFM categories.
	RecencyBuckets   [3]float64 // days: very_recent | recent | inactive | very_inactive
	TenureBuckets    [3]float64 // days: new | established | veteran | longstanding
	SpendBuckets     [3]float64 // currency: low | medium | high | premium
	FrequencyBuckets [3]float64 // shipments: occasional | regular | frequent | vip
	TicketBuckets    [3]float64 // spend per shipment: low | medium | high | premium

	// Engagement score weights. Recency dominates: it is the strongest
	// near-term churn signal.
	RecencyWeight   float64
	FrequencyWeight float64
	SpendWeight     float64

	// Risk thresholds.
	InactivityDays         float64
	LowEngagementThreshold float64
	RecentActivityDays     float64
	HighValueSpend         float64
	HighValueShipments     float64
}

// TrainingConfig holds the model training and selection settings.
type TrainingConfig struct {
	TestRatio  float64
	Folds      int
	Seed       int64
	Candidates []model.CandidateSpec

	// Priority is the final tie-break order between candidates whose CV and
	// test F1 are both equal.
	Priority []string
}

// StorageConfig holds the optional Postgres artifact store settings.
type StorageConfig struct {
	DatabaseURL string
	Enabled     bool
}

// OutputConfig holds the report output settings.
type OutputConfig struct {
	Dir string
}

// Load reads configuration from environment variables, applying the fixed
// defaults for anything unset, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Cleaning: CleaningConfig{
			CapSpend:      getEnvFloatOrDefault("CAP_SPEND", 15000),
			CapShipments:  getEnvFloatOrDefault("CAP_SHIPMENTS", 500),
			PhoneSentinel: getEnvOrDefault("PHONE_SENTINEL", "MISSING"),
			HashSalt:      getEnvOrDefault("PII_HASH_SALT", "churn_pipeline_salt_v1"),
		},
		Features: FeatureConfig{
			RecencyBuckets:   [3]float64{30, 90, 180},
			TenureBuckets:    [3]float64{180, 365, 730},
			SpendBuckets:     [3]float64{500, 1500, 5000},
			FrequencyBuckets: [3]float64{10, 30, 100},
			TicketBuckets:    [3]float64{50, 100, 200},

			RecencyWeight:   getEnvFloatOrDefault("ENGAGEMENT_RECENCY_WEIGHT", 0.4),
			FrequencyWeight: getEnvFloatOrDefault("ENGAGEMENT_FREQUENCY_WEIGHT", 0.3),
			SpendWeight:     getEnvFloatOrDefault("ENGAGEMENT_SPEND_WEIGHT", 0.3),

			InactivityDays:         getEnvFloatOrDefault("RECENCY_WINDOW_DAYS", 180),
			LowEngagementThreshold: getEnvFloatOrDefault("LOW_ENGAGEMENT_THRESHOLD", 30),
			RecentActivityDays:     90,
			HighValueSpend:         1500,
			HighValueShipments:     50,
		},
		Training: TrainingConfig{
			TestRatio:  getEnvFloatOrDefault("TEST_RATIO", 0.25),
			Folds:      getEnvIntOrDefault("CV_FOLDS", 5),
			Seed:       int64(getEnvIntOrDefault("RANDOM_SEED", 42)),
			Candidates: DefaultCandidates(),
			Priority: []string{
				"random_forest",
				"logistic_regression",
				"decision_tree",
			},
		},
		Storage: loadStorageConfig(),
		Output: OutputConfig{
			Dir: getEnvOrDefault("OUTPUT_DIR", "results"),
		},
	}

	if refStr := os.Getenv("REFERENCE_DATE"); refStr != "" {
		ref, err := time.Parse("2006-01-02", refStr)
		if err != nil {
			return nil, errors.ConfigInvalid("REFERENCE_DATE must be YYYY-MM-DD")
		}
		cfg.Features.ReferenceDate = ref
	}

	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

// DefaultCandidates returns the fixed competitor set with conservative
// hyperparameters chosen to avoid overfitting on small batches.
func DefaultCandidates() []model.CandidateSpec {
	return []model.CandidateSpec{
		{
			Name:      "random_forest",
			Algorithm: model.AlgorithmRandomForest,
			Forest: &model.ForestParams{
				Trees:           50,
				MaxDepth:        3,
				MinSamplesSplit: 30,
				MinSamplesLeaf:  15,
				SqrtFeatures:    true,
			},
		},
		{
			Name:      "logistic_regression",
			Algorithm: model.AlgorithmLogisticRegression,
			Logistic: &model.LogisticParams{
				LearningRate: 0.1,
				Epochs:       1000,
				L2Lambda:     0.01,
				BalanceClass: true,
				Standardize:  true,
			},
		},
		{
			Name:      "decision_tree",
			Algorithm: model.AlgorithmDecisionTree,
			Tree: &model.TreeParams{
				MaxDepth:        3,
				MinSamplesSplit: 30,
				MinSamplesLeaf:  15,
			},
		},
	}
}

func loadStorageConfig() StorageConfig {
	url := os.Getenv("DATABASE_URL")
	return StorageConfig{
		DatabaseURL: url,
		Enabled:     url != "",
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Cleaning.CapSpend <= 0 {
		return errors.ConfigInvalid("CAP_SPEND must be positive")
	}
	if cfg.Cleaning.CapShipments <= 0 {
		return errors.ConfigInvalid("CAP_SHIPMENTS must be positive")
	}
	if cfg.Training.TestRatio <= 0 || cfg.Training.TestRatio >= 1 {
		return errors.ConfigInvalid("TEST_RATIO must be in (0, 1)")
	}
	if cfg.Training.Folds < 2 {
		return errors.ConfigInvalid("CV_FOLDS must be at least 2")
	}
	if len(cfg.Training.Candidates) == 0 {
		return errors.ConfigInvalid("at least one model candidate is required")
	}
	w := cfg.Features.RecencyWeight + cfg.Features.FrequencyWeight + cfg.Features.SpendWeight
	if w <= 0 {
		return errors.ConfigInvalid("engagement weights must sum to a positive value")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
