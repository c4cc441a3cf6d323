package quality

import "time"

// Config holds the scorer thresholds and weights.
type Config struct {
	DuplicateThreshold float64           `mapstructure:"duplicate_threshold"`
	ExactWindow        time.Duration     `mapstructure:"exact_window"`
	SimilarWindow      time.Duration     `mapstructure:"similar_window"`
	SpamThreshold      float64           `mapstructure:"spam_threshold"`
	Similarity         SimilarityWeights `mapstructure:"similarity"`
	Components         ComponentWeights  `mapstructure:"components"`
}

// SimilarityWeights weigh the per-field similarity of two postings.
type SimilarityWeights struct {
	Title    float64 `mapstructure:"title"`
	Company  float64 `mapstructure:"company"`
	Location float64 `mapstructure:"location"`
}

// ComponentWeights weigh the quality components; they sum to 1.
type ComponentWeights struct {
	Title       float64 `mapstructure:"title"`
	Description float64 `mapstructure:"description"`
	Company     float64 `mapstructure:"company"`
	Salary      float64 `mapstructure:"salary"`
	Location    float64 `mapstructure:"location"`
	Freshness   float64 `mapstructure:"freshness"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold: 0.85,
		ExactWindow:        30 * 24 * time.Hour,
		SimilarWindow:      7 * 24 * time.Hour,
		SpamThreshold:      0.3,
		Similarity:         SimilarityWeights{Title: 0.6, Company: 0.3, Location: 0.1},
		Components: ComponentWeights{
			Title: 0.2, Description: 0.3, Company: 0.15, Salary: 0.15, Location: 0.1, Freshness: 0.1,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		c.DuplicateThreshold = d.DuplicateThreshold
	}
	if c.ExactWindow <= 0 {
		c.ExactWindow = d.ExactWindow
	}
	if c.SimilarWindow <= 0 {
		c.SimilarWindow = d.SimilarWindow
	}
	if c.SpamThreshold <= 0 {
		c.SpamThreshold = d.SpamThreshold
	}
	if c.Similarity == (SimilarityWeights{}) {
		c.Similarity = d.Similarity
	}
	if c.Components == (ComponentWeights{}) {
		c.Components = d.Components
	}
	return c
}
