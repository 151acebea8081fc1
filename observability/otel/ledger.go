package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const ledgerMeterName = "ryft/ledger"

// RegisterLedgerGauges exposes the pool figures returned by source as
// observable gauges on provider. Every collection reads source once.
func RegisterLedgerGauges(provider metric.MeterProvider, source LedgerSource) (metric.Registration, error) {
	if provider == nil || source == nil {
		return nil, fmt.Errorf("ledger gauges: provider and source required")
	}
	meter := provider.Meter(ledgerMeterName)

	liquidity, err := meter.Float64ObservableGauge("ryft.ledger.total_liquidity",
		metric.WithDescription("Aggregate pool liquidity counter."), metric.WithUnit("{token}"))
	if err != nil {
		return nil, fmt.Errorf("ledger gauges: %w", err)
	}
	staked, err := meter.Float64ObservableGauge("ryft.ledger.total_staked",
		metric.WithDescription("Aggregate staked amount."), metric.WithUnit("{token}"))
	if err != nil {
		return nil, fmt.Errorf("ledger gauges: %w", err)
	}
	fees, err := meter.Float64ObservableGauge("ryft.ledger.accumulated_fees",
		metric.WithDescription("Flash loan fees accrued to the pool."), metric.WithUnit("{token}"))
	if err != nil {
		return nil, fmt.Errorf("ledger gauges: %w", err)
	}
	feeRate, err := meter.Float64ObservableGauge("ryft.ledger.fee_rate",
		metric.WithDescription("Flash loan fee rate."), metric.WithUnit("{bp}"))
	if err != nil {
		return nil, fmt.Errorf("ledger gauges: %w", err)
	}
	phase, err := meter.Int64ObservableGauge("ryft.ledger.phase",
		metric.WithDescription("1 for the current flash loan phase, 0 otherwise."))
	if err != nil {
		return nil, fmt.Errorf("ledger gauges: %w", err)
	}

	idle := metric.WithAttributes(attribute.String("phase", "idle"))
	active := metric.WithAttributes(attribute.String("phase", "active"))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snap := source()
		o.ObserveFloat64(liquidity, float64(snap.TotalLiquidity))
		o.ObserveFloat64(staked, float64(snap.TotalStaked))
		o.ObserveFloat64(fees, float64(snap.AccumulatedFees))
		o.ObserveFloat64(feeRate, float64(snap.FeeRateBps))
		if snap.FlashLoanActive {
			o.ObserveInt64(phase, 0, idle)
			o.ObserveInt64(phase, 1, active)
		} else {
			o.ObserveInt64(phase, 1, idle)
			o.ObserveInt64(phase, 0, active)
		}
		return nil
	}, liquidity, staked, fees, feeRate, phase)
}
