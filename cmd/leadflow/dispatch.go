package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/log"
	"github.com/dukex/leadflow/pkg/models"
	json "github.com/goccy/go-json"
	cli "github.com/urfave/cli/v3"
)

// NewDispatchCommand publishes a CRM event for the engines consuming the event bus.
func NewDispatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "dispatch",
		Usage: "Publish a trigger event to the event bus",
		Flags: append(eventBusFlags(),
			&cli.StringFlag{
				Name:     "trigger-type",
				Usage:    "LEAD_CREATED, LEAD_UPDATED, EMAIL_RECEIVED, EMAIL_OPENED, EMAIL_CLICKED, MANUAL or SCHEDULED",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "lead-id",
				Usage: "Lead the event is about",
			},
			&cli.StringFlag{
				Name:  "payload",
				Usage: "Extra event payload as a JSON object",
				Value: "{}",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("leadflow").With("action", "dispatch")

			event, err := newTriggerEvent(
				models.TriggerType(command.String("trigger-type")),
				command.String("lead-id"),
				command.String("payload"),
			)
			if err != nil {
				return err
			}

			bus, err := cmd.NewEventBus(logger, command.String("event-bus"), command.String("kafka-brokers"))
			if err != nil {
				return err
			}

			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			err = bus.Publish(ctx, event.LeadID, event)
			if err != nil {
				return fmt.Errorf("failed to publish event: %w", err)
			}

			logger.InfoContext(ctx, "event published", "event_id", event.ID, "trigger_type", event.TriggerType)

			return nil
		},
	}
}

func newTriggerEvent(triggerType models.TriggerType, leadID, rawPayload string) (*events.TriggerReceived, error) {
	if !triggerType.Valid() {
		return nil, fmt.Errorf("unknown trigger type %q", triggerType)
	}

	if leadID == "" && !triggerType.Administrative() {
		return nil, fmt.Errorf("%s events need a lead id", triggerType)
	}

	payload := map[string]any{}

	err := json.Unmarshal([]byte(rawPayload), &payload)
	if err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}

	return &events.TriggerReceived{
		BaseEvent: events.BaseEvent{
			ID:     watermill.NewULID(),
			Type:   events.TriggerReceivedEvent,
			LeadID: leadID,
		},
		TriggerType: triggerType,
		Payload:     payload,
	}, nil
}
