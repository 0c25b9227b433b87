package guard

// Service quota defaults. A text unit is the fixed-size character quantum
// the service prices and throttles by; one call may carry at most
// QuotaUnits units, and the account may spend at most UnitsPerSecond
// units per second across all callers.
const (
	DefaultUnitSize       = 1000
	DefaultQuotaUnits     = 25
	DefaultUnitsPerSecond = 25
)

// Limits holds the quota constants the dispatcher works against.
// Zero fields fall back to the service defaults.
type Limits struct {
	UnitSize       int `yaml:"unit_size" json:"unit_size"`
	QuotaUnits     int `yaml:"quota_units" json:"quota_units"`
	UnitsPerSecond int `yaml:"units_per_second" json:"units_per_second"`
}

// WithDefaults returns a copy with zero fields replaced by defaults.
func (l Limits) WithDefaults() Limits {
	if l.UnitSize <= 0 {
		l.UnitSize = DefaultUnitSize
	}
	if l.QuotaUnits <= 0 {
		l.QuotaUnits = DefaultQuotaUnits
	}
	if l.UnitsPerSecond <= 0 {
		l.UnitsPerSecond = DefaultUnitsPerSecond
	}
	return l
}

// Units maps a character count to billable text units:
// ceil(chars/UnitSize), minimum 1 for non-empty text.
func (l Limits) Units(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + l.UnitSize - 1) / l.UnitSize
}

// MaxChars is the largest content length a single call may carry.
func (l Limits) MaxChars() int {
	return l.UnitSize * l.QuotaUnits
}
