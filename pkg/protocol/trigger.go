package protocol

import (
	"context"
)

// TriggerCallback receives the events produced by a trigger source.
type TriggerCallback func(ctx context.Context, payload map[string]any) error

// Trigger is a long running source of trigger events.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}
