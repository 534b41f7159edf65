// Package schedule fires SCHEDULED triggers on cron expressions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/robfig/cron/v3"
)

var (
	ErrMissingID   = errors.New("schedule trigger ID is required")
	ErrMissingCron = errors.New("schedule trigger cron expression is required")
)

// ScheduleTrigger calls its callback on every cron tick. With lead ids configured the callback
// runs once per lead, otherwise once with an administrative payload carrying no lead.
type ScheduleTrigger struct {
	ID         string
	CronExpr   string
	WorkflowID string
	LeadIDs    []string
	Enabled    bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

func NewScheduleTrigger(config map[string]any, logger *slog.Logger) (*ScheduleTrigger, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)
	workflowID, _ := config["workflowId"].(string)

	enabled := true
	if value, ok := config["enabled"].(bool); ok {
		enabled = value
	}

	trigger := &ScheduleTrigger{
		ID:         id,
		CronExpr:   cronExpr,
		WorkflowID: workflowID,
		LeadIDs:    leadIDs(config["leadIds"]),
		Enabled:    enabled,
		logger: logger.With(
			"module", "schedule_trigger",
			"id", id,
			"cron", cronExpr,
			"workflow_id", workflowID,
		),
	}

	err := trigger.Validate()
	if err != nil {
		return nil, err
	}

	return trigger, nil
}

func leadIDs(value any) []string {
	switch ids := value.(type) {
	case []string:
		return ids
	case []any:
		result := make([]string, 0, len(ids))
		for _, id := range ids {
			if s, ok := id.(string); ok && s != "" {
				result = append(result, s)
			}
		}

		return result
	default:
		return nil
	}
}

func (t *ScheduleTrigger) Validate() error {
	if t.ID == "" {
		return ErrMissingID
	}

	if t.CronExpr == "" {
		return ErrMissingCron
	}

	_, err := cron.ParseStandard(t.CronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *ScheduleTrigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "schedule trigger is disabled")

		return nil
	}

	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := t.cron.AddFunc(t.CronExpr, func() { t.run(context.WithoutCancel(ctx)) })
	if err != nil {
		return fmt.Errorf("failed to add cron job for trigger %s: %w", t.ID, err)
	}

	t.logger.InfoContext(ctx, "schedule trigger started", "entry_id", id, "leads", len(t.LeadIDs))
	t.cron.Start()

	return nil
}

func (t *ScheduleTrigger) run(ctx context.Context) {
	timestamp := time.Now().UTC().Format(time.RFC3339)

	if len(t.LeadIDs) == 0 {
		t.fire(ctx, t.payload(timestamp, ""))

		return
	}

	for _, leadID := range t.LeadIDs {
		t.fire(ctx, t.payload(timestamp, leadID))
	}
}

func (t *ScheduleTrigger) payload(timestamp, leadID string) map[string]any {
	payload := map[string]any{
		"timestamp":      timestamp,
		"eventTimestamp": timestamp,
		"scheduleId":     t.ID,
	}

	if t.WorkflowID != "" {
		payload["workflowId"] = t.WorkflowID
	}

	if leadID != "" {
		payload["leadId"] = leadID
	}

	return payload
}

func (t *ScheduleTrigger) fire(ctx context.Context, payload map[string]any) {
	err := t.callback(ctx, payload)
	if err != nil {
		t.logger.ErrorContext(ctx, "schedule callback failed", "lead_id", payload["leadId"], "error", err)
	}
}

func (t *ScheduleTrigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "stopping schedule trigger")

	if t.cron != nil {
		<-t.cron.Stop().Done()
	}

	return nil
}
