package domain

import "fmt"

// StockCategory is the resupply status label for one ledger.
type StockCategory string

const (
	CategoryNoData     StockCategory = "nodata"
	CategoryStockout   StockCategory = "stockout"
	CategoryUnderstock StockCategory = "understock"
	CategoryAdequate   StockCategory = "adequate"
	CategoryOverstock  StockCategory = "overstock"
)

const (
	DefaultEmergencyMonths  = 0.5
	DefaultUnderstockMonths = 1.5
	DefaultOverstockMonths  = 3.0
)

// ThresholdConfig expresses category boundaries in months of remaining
// stock, where one month is 30 days of consumption at the estimated rate.
type ThresholdConfig struct {
	EmergencyMonths  float64
	UnderstockMonths float64
	OverstockMonths  float64
}

func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		EmergencyMonths:  DefaultEmergencyMonths,
		UnderstockMonths: DefaultUnderstockMonths,
		OverstockMonths:  DefaultOverstockMonths,
	}
}

func (t ThresholdConfig) Validate() error {
	if t.EmergencyMonths < 0 || t.UnderstockMonths < 0 || t.OverstockMonths < 0 {
		return fmt.Errorf("thresholds must not be negative: %+v", t)
	}
	if t.UnderstockMonths > t.OverstockMonths {
		return fmt.Errorf("understock threshold %v exceeds overstock threshold %v",
			t.UnderstockMonths, t.OverstockMonths)
	}
	return nil
}
