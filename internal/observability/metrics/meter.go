// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opentrusty/obralog"

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{meter: otel.Meter("noop")}, nil
	}
	// Uses the global meter provider; exporters are configured by the SDK environment.
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Domain instruments. They are created lazily on the global provider, which
// forwards to whatever provider is installed later.
var (
	instrumentsOnce sync.Once
	logins          metric.Int64Counter
	refreshes       metric.Int64Counter
	accessDenied    metric.Int64Counter
	grantsAssigned  metric.Int64Counter
)

func instruments() {
	instrumentsOnce.Do(func() {
		m := &Meter{meter: otel.Meter(instrumentationName)}
		logins, _ = m.CreateCounter("obralog.auth.logins", "Login attempts by outcome")
		refreshes, _ = m.CreateCounter("obralog.auth.refreshes", "Refresh-token rotations by outcome")
		accessDenied, _ = m.CreateCounter("obralog.guard.denied", "Requests denied by the access guard")
		grantsAssigned, _ = m.CreateCounter("obralog.rbac.grants_assigned", "Grant upserts")
	})
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("outcome", "success")
	}
	return attribute.String("outcome", "failure")
}

// RecordLogin counts a login attempt.
func RecordLogin(ctx context.Context, ok bool) {
	instruments()
	if logins != nil {
		logins.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
	}
}

// RecordRefresh counts a refresh attempt.
func RecordRefresh(ctx context.Context, ok bool) {
	instruments()
	if refreshes != nil {
		refreshes.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
	}
}

// RecordAccessDenied counts a guard denial by the rule that fired.
func RecordAccessDenied(ctx context.Context, rule string) {
	instruments()
	if accessDenied != nil {
		accessDenied.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	}
}

// RecordGrantAssigned counts a grant upsert for a module.
func RecordGrantAssigned(ctx context.Context, moduleCode string) {
	instruments()
	if grantsAssigned != nil {
		grantsAssigned.Add(ctx, 1, metric.WithAttributes(attribute.String("module", moduleCode)))
	}
}
