package lifecycle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IronFox/AVS-sub001/pkg/core"
)

const instrumentationName = "github.com/IronFox/AVS-sub001/internal/lifecycle"

type metrics struct {
	transitions  metric.Int64Counter
	hookFailures metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out metrics
		err error
	)
	out.transitions, err = m.Int64Counter(
		"lifecycle.transitions",
		metric.WithDescription("Completed lifecycle transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	out.hookFailures, err = m.Int64Counter(
		"lifecycle.hook.failures",
		metric.WithDescription("Hook and listener failures contained by the controller"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hook failures counter: %w", err)
	}
	return &out, nil
}

func (m *metrics) transitioned(tr core.Transition) {
	m.transitions.Add(context.Background(), 1, metric.WithAttributes(attribute.String("transition", string(tr))))
}

func (m *metrics) hookFailed(tr core.Transition) {
	m.hookFailures.Add(context.Background(), 1, metric.WithAttributes(attribute.String("transition", string(tr))))
}
