package config

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/de-tools/stock-atlas/pkg/models/domain"
)

// Registry resolves consumption and threshold settings, with optional
// per-entity-type overrides on top of the program-wide defaults.
type Registry interface {
	ConsumptionConfig(ctx context.Context, entityType string) domain.ConsumptionConfig
	Thresholds(ctx context.Context, entityType string) domain.ThresholdConfig
}

type ConsumptionSettings struct {
	MinTransactions       int     `mapstructure:"min_transactions"`
	MinWindow             float64 `mapstructure:"min_window"`
	OptimalWindow         float64 `mapstructure:"optimal_window"`
	ExcludeInvalidPeriods bool    `mapstructure:"exclude_invalid_periods"`
}

type ThresholdSettings struct {
	EmergencyLevel      float64 `mapstructure:"emergency_level"`
	UnderstockThreshold float64 `mapstructure:"understock_threshold"`
	OverstockThreshold  float64 `mapstructure:"overstock_threshold"`
}

type EntityTypeSettings struct {
	Consumption *ConsumptionSettings `mapstructure:"consumption"`
	Thresholds  *ThresholdSettings   `mapstructure:"thresholds"`
}

type Settings struct {
	Consumption ConsumptionSettings           `mapstructure:"consumption"`
	Thresholds  ThresholdSettings             `mapstructure:"thresholds"`
	EntityTypes map[string]EntityTypeSettings `mapstructure:"entity_types"`
}

type settingsRegistry struct {
	settings Settings
}

// LoadRegistry reads the settings profile and validates every section,
// including the per-entity-type overrides, before anything is served.
func LoadRegistry(profilePath string) (Registry, error) {
	v := viper.New()
	v.SetConfigFile(profilePath)

	v.SetDefault("consumption.min_transactions", domain.DefaultMinPeriods)
	v.SetDefault("consumption.min_window", domain.DefaultMinWindowDays)
	v.SetDefault("consumption.optimal_window", 60)
	v.SetDefault("consumption.exclude_invalid_periods", false)
	v.SetDefault("thresholds.emergency_level", domain.DefaultEmergencyMonths)
	v.SetDefault("thresholds.understock_threshold", domain.DefaultUnderstockMonths)
	v.SetDefault("thresholds.overstock_threshold", domain.DefaultOverstockMonths)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	r := &settingsRegistry{settings: settings}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// DefaultRegistry serves the built-in defaults, for setups without a
// settings profile.
func DefaultRegistry() Registry {
	return &settingsRegistry{settings: Settings{
		Consumption: ConsumptionSettings{
			MinTransactions: domain.DefaultMinPeriods,
			MinWindow:       domain.DefaultMinWindowDays,
			OptimalWindow:   60,
		},
		Thresholds: ThresholdSettings{
			EmergencyLevel:      domain.DefaultEmergencyMonths,
			UnderstockThreshold: domain.DefaultUnderstockMonths,
			OverstockThreshold:  domain.DefaultOverstockMonths,
		},
	}}
}

func (r *settingsRegistry) validate() error {
	if err := toConsumptionConfig(r.settings.Consumption).Validate(); err != nil {
		return fmt.Errorf("consumption settings: %w", err)
	}
	if err := toThresholdConfig(r.settings.Thresholds).Validate(); err != nil {
		return fmt.Errorf("threshold settings: %w", err)
	}
	for name := range r.settings.EntityTypes {
		if err := r.consumptionFor(name).Validate(); err != nil {
			return fmt.Errorf("entity type %q consumption settings: %w", name, err)
		}
		if err := r.thresholdsFor(name).Validate(); err != nil {
			return fmt.Errorf("entity type %q threshold settings: %w", name, err)
		}
	}
	return nil
}

func (r *settingsRegistry) ConsumptionConfig(_ context.Context, entityType string) domain.ConsumptionConfig {
	return r.consumptionFor(entityType)
}

func (r *settingsRegistry) Thresholds(_ context.Context, entityType string) domain.ThresholdConfig {
	return r.thresholdsFor(entityType)
}

func (r *settingsRegistry) consumptionFor(entityType string) domain.ConsumptionConfig {
	if override, ok := r.settings.EntityTypes[entityType]; ok && override.Consumption != nil {
		return toConsumptionConfig(*override.Consumption)
	}
	return toConsumptionConfig(r.settings.Consumption)
}

func (r *settingsRegistry) thresholdsFor(entityType string) domain.ThresholdConfig {
	if override, ok := r.settings.EntityTypes[entityType]; ok && override.Thresholds != nil {
		return toThresholdConfig(*override.Thresholds)
	}
	return toThresholdConfig(r.settings.Thresholds)
}

func toConsumptionConfig(s ConsumptionSettings) domain.ConsumptionConfig {
	return domain.ConsumptionConfig{
		MinPeriods:            s.MinTransactions,
		MinWindowDays:         s.MinWindow,
		WindowDays:            s.OptimalWindow,
		ExcludeInvalidPeriods: s.ExcludeInvalidPeriods,
	}
}

func toThresholdConfig(s ThresholdSettings) domain.ThresholdConfig {
	return domain.ThresholdConfig{
		EmergencyMonths:  s.EmergencyLevel,
		UnderstockMonths: s.UnderstockThreshold,
		OverstockMonths:  s.OverstockThreshold,
	}
}
