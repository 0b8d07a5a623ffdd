package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the delegation engine
type Metrics struct {
	// Grant flow metrics
	GrantsStarted      metric.Int64Counter
	GrantsDenied       metric.Int64Counter
	AuthFailures       metric.Int64Counter
	CodesIssued        metric.Int64Counter
	CodesRedeemed      metric.Int64Counter
	RedemptionFailures metric.Int64Counter

	// Token metrics
	TokensIssued      metric.Int64Counter
	DelegationsIssued metric.Int64Counter
	CredentialsIssued metric.Int64Counter
	Verifications     metric.Int64Counter

	// Storage metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageTokensCount       metric.Int64ObservableGauge
	StorageClientsCount      metric.Int64ObservableGauge
	StorageGrantsCount       metric.Int64ObservableGauge
	StorageCodesCount        metric.Int64ObservableGauge
}

func newMetrics(inst *Instrumentation) (*Metrics, error) {
	engineMeter := inst.Meter("engine")
	storageMeter := inst.Meter("storage")

	m := &Metrics{}
	var err error

	if m.GrantsStarted, err = engineMeter.Int64Counter(
		"delegate.grants.started",
		metric.WithDescription("Number of authorization grants started"),
		metric.WithUnit("{grant}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create grants started counter: %w", err)
	}

	if m.GrantsDenied, err = engineMeter.Int64Counter(
		"delegate.grants.denied",
		metric.WithDescription("Number of authorization grants denied at consent"),
		metric.WithUnit("{grant}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create grants denied counter: %w", err)
	}

	if m.AuthFailures, err = engineMeter.Int64Counter(
		"delegate.auth.failures",
		metric.WithDescription("Number of failed authentication attempts"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create auth failures counter: %w", err)
	}

	if m.CodesIssued, err = engineMeter.Int64Counter(
		"delegate.codes.issued",
		metric.WithDescription("Number of authorization codes issued"),
		metric.WithUnit("{code}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create codes issued counter: %w", err)
	}

	if m.CodesRedeemed, err = engineMeter.Int64Counter(
		"delegate.codes.redeemed",
		metric.WithDescription("Number of authorization codes redeemed"),
		metric.WithUnit("{code}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create codes redeemed counter: %w", err)
	}

	if m.RedemptionFailures, err = engineMeter.Int64Counter(
		"delegate.codes.redemption_failures",
		metric.WithDescription("Number of failed code redemptions"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create redemption failures counter: %w", err)
	}

	if m.TokensIssued, err = engineMeter.Int64Counter(
		"delegate.tokens.issued",
		metric.WithDescription("Number of tokens issued, by token type"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tokens issued counter: %w", err)
	}

	if m.DelegationsIssued, err = engineMeter.Int64Counter(
		"delegate.delegations.issued",
		metric.WithDescription("Number of delegation tokens issued"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create delegations issued counter: %w", err)
	}

	if m.CredentialsIssued, err = engineMeter.Int64Counter(
		"delegate.credentials.issued",
		metric.WithDescription("Number of verifiable credentials issued"),
		metric.WithUnit("{credential}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create credentials issued counter: %w", err)
	}

	if m.Verifications, err = engineMeter.Int64Counter(
		"delegate.verifications.total",
		metric.WithDescription("Number of token verifications, by outcome"),
		metric.WithUnit("{verification}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create verifications counter: %w", err)
	}

	if m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"delegate.storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage operation counter: %w", err)
	}

	if m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"delegate.storage.operation.duration",
		metric.WithDescription("Duration of storage operations"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage duration histogram: %w", err)
	}

	if m.StorageTokensCount, err = storageMeter.Int64ObservableGauge(
		"delegate.storage.tokens.count",
		metric.WithDescription("Current number of stored token records"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tokens count gauge: %w", err)
	}

	if m.StorageClientsCount, err = storageMeter.Int64ObservableGauge(
		"delegate.storage.clients.count",
		metric.WithDescription("Current number of registered clients"),
		metric.WithUnit("{client}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create clients count gauge: %w", err)
	}

	if m.StorageGrantsCount, err = storageMeter.Int64ObservableGauge(
		"delegate.storage.grants.count",
		metric.WithDescription("Current number of in-flight grants"),
		metric.WithUnit("{grant}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create grants count gauge: %w", err)
	}

	if m.StorageCodesCount, err = storageMeter.Int64ObservableGauge(
		"delegate.storage.codes.count",
		metric.WithDescription("Current number of outstanding authorization codes"),
		metric.WithUnit("{code}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create codes count gauge: %w", err)
	}

	return m, nil
}

// RecordStorageOperation records a storage operation with its duration
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, entity string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("entity", entity),
		attribute.String("status", status),
	)

	m.StorageOperationTotal.Add(ctx, 1, attrs)
	m.StorageOperationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTokenIssued records a token issuance with its type
func (m *Metrics) RecordTokenIssued(ctx context.Context, tokenType string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("token_type", tokenType),
	))
}

// RecordVerification records a verification attempt with its outcome
func (m *Metrics) RecordVerification(ctx context.Context, outcome string) {
	m.Verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
