package generator

// Config drives the synthetic chat generator.
type Config struct {
	NumUsers    int
	NumMessages int
	// SplitChance is the probability that a message names more than one debtor.
	SplitChance float64
	// DivisorChance is the probability that a split message spells the divisor out ("900/3").
	DivisorChance float64
	// DecimalChance is the probability that an amount is written in major units ("12.50").
	DecimalChance float64
	// MultiLineChance is the probability that a message carries a second line.
	MultiLineChance float64
	PaydayChance    float64
	MinorDigits     int32
	Seed            int64
}

// DefaultConfig returns settings for a small demo ledger.
func DefaultConfig() Config {
	return Config{
		NumUsers:        200,
		NumMessages:     2000,
		SplitChance:     0.35,
		DivisorChance:   0.3,
		DecimalChance:   0.25,
		MultiLineChance: 0.1,
		PaydayChance:    0.4,
		MinorDigits:     2,
		Seed:            42,
	}
}
