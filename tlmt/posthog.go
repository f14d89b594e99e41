package tlmt

import (
	"context"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

type posthogTelemetry struct {
	client     posthog.Client
	distinctID string
}

// NewPosthog reports events to PostHog under a random per-process identity,
// so no installation is ever identifiable across runs.
func NewPosthog(apiKey, endpoint string) (Telemetry, error) {
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: endpoint,
	})
	if err != nil {
		return nil, err
	}

	return &posthogTelemetry{
		client:     client,
		distinctID: uuid.New().String(),
	}, nil
}

func (p *posthogTelemetry) Send(_ context.Context, event Event) error {
	props := posthog.NewProperties()

	for k, v := range event.Data {
		props.Set(k, v)
	}

	return p.client.Enqueue(posthog.Capture{
		DistinctId: p.distinctID,
		Event:      event.Name,
		Properties: props,
	})
}

func (p *posthogTelemetry) Close() error {
	return p.client.Close()
}
