// Package tlmt provides minimal product telemetry. Events are fire and
// forget; no caller should ever fail because telemetry did.
package tlmt

import "context"

type Event struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

func NewEvent(name string, data map[string]any) Event {
	return Event{
		Name: name,
		Data: data,
	}
}

type Telemetry interface {
	Send(ctx context.Context, event Event) error
	Close() error
}
