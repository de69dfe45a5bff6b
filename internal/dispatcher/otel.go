package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/IronFox/AVS-sub001/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
