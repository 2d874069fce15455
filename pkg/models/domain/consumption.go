package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMinPeriods    = 2
	DefaultMinWindowDays = 10.0

	// OvershootDays is how far before the estimation window transactions
	// should be fetched, so a period straddling the window start can be
	// prorated instead of dropped.
	OvershootDays = 15.0
)

// ConsumptionPeriod is the span between two consecutive checkpoints, used as
// the unit of consumption measurement. Transient: built during estimation and
// discarded afterwards.
type ConsumptionPeriod struct {
	Start       time.Time
	End         time.Time
	Consumption decimal.Decimal
}

// Days returns the period length in fractional days.
func (p ConsumptionPeriod) Days() float64 {
	return p.End.Sub(p.Start).Hours() / 24
}

// ConsumptionConfig holds the statistical gates for the consumption
// estimator. Passed by value; the engine never mutates it.
type ConsumptionConfig struct {
	// MinPeriods is the minimum number of qualifying consumption periods
	// required before a rate is reported.
	MinPeriods int
	// MinWindowDays is the minimum total normalized period length, in days.
	MinWindowDays float64
	// WindowDays is the lookback horizon. No universal default; depends on
	// the commodity program, commonly 60.
	WindowDays float64
	// ExcludeInvalidPeriods makes segmentation strict after a stockout: no
	// period opens until the next non-stockout balance. When false, a
	// zero-valued balance still opens the following period at value 0.
	ExcludeInvalidPeriods bool
}

func DefaultConsumptionConfig(windowDays float64) ConsumptionConfig {
	return ConsumptionConfig{
		MinPeriods:    DefaultMinPeriods,
		MinWindowDays: DefaultMinWindowDays,
		WindowDays:    windowDays,
	}
}

func (c ConsumptionConfig) Validate() error {
	if c.MinPeriods < 1 {
		return fmt.Errorf("min_transactions must be at least 1, got %d", c.MinPeriods)
	}
	if c.MinWindowDays < 0 {
		return fmt.Errorf("min_window must not be negative, got %v", c.MinWindowDays)
	}
	if c.WindowDays <= 0 {
		return fmt.Errorf("optimal_window must be positive, got %v", c.WindowDays)
	}
	return nil
}
