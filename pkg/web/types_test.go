package web_test

import (
	"testing"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestRequests_Validation(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	assert.NoError(t, v.Struct(web.TriggerWorkflowRequest{LeadID: "lead-1"}))
	assert.Error(t, v.Struct(web.TriggerWorkflowRequest{}))

	assert.NoError(t, v.Struct(web.DispatchEventRequest{TriggerType: models.TriggerLeadCreated}))
	assert.Error(t, v.Struct(web.DispatchEventRequest{Payload: map[string]any{"leadId": "x"}}))
}

func TestSummarizeWorkflow(t *testing.T) {
	workflow := &models.Workflow{
		ID:       "wf-1",
		Name:     "Follow-up",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Data: &models.TriggerData{TriggerType: models.TriggerEmailOpened}},
			{ID: "t2", Type: models.NodeTypeTrigger, Data: &models.TriggerData{TriggerType: models.TriggerManual}},
			{ID: "t3", Type: models.NodeTypeTrigger, Data: &models.TriggerData{TriggerType: models.TriggerEmailOpened}},
			{ID: "e1", Type: models.NodeTypeEnd, Data: &models.EndData{}},
		},
	}

	summary := web.SummarizeWorkflow(workflow)
	assert.Equal(t, []models.TriggerType{models.TriggerEmailOpened, models.TriggerManual}, summary.Triggers)
	assert.Equal(t, 4, summary.Nodes)
	assert.True(t, summary.IsActive)
}
