// Package web exposes the workflow engine over HTTP.
package web

import "github.com/dukex/leadflow/pkg/models"

// TriggerWorkflowRequest starts a workflow by hand for one lead.
type TriggerWorkflowRequest struct {
	LeadID string `json:"leadId" validate:"required"`
}

// DispatchEventRequest delivers a CRM event to every listening workflow.
type DispatchEventRequest struct {
	TriggerType models.TriggerType `json:"triggerType" validate:"required"`
	Payload     map[string]any     `json:"payload"`
}

type DispatchEventResponse struct {
	TriggerType models.TriggerType `json:"triggerType"`
	Started     int                `json:"started"`
}

// WorkflowSummary is the list view of a workflow.
type WorkflowSummary struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	IsActive bool                 `json:"isActive"`
	Triggers []models.TriggerType `json:"triggers"`
	Nodes    int                  `json:"nodes"`
}

// SummarizeWorkflow lists the distinct trigger types of a workflow in declaration order.
func SummarizeWorkflow(workflow *models.Workflow) WorkflowSummary {
	summary := WorkflowSummary{
		ID:       workflow.ID,
		Name:     workflow.Name,
		IsActive: workflow.IsActive,
		Triggers: []models.TriggerType{},
		Nodes:    len(workflow.Nodes),
	}

	seen := map[models.TriggerType]bool{}

	for _, node := range workflow.Nodes {
		data, ok := node.Data.(*models.TriggerData)
		if !ok || seen[data.TriggerType] {
			continue
		}

		seen[data.TriggerType] = true
		summary.Triggers = append(summary.Triggers, data.TriggerType)
	}

	return summary
}
