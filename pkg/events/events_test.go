package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  any
	}{
		{TriggerReceivedEvent, &TriggerReceived{}},
		{WorkflowStartedEvent, &WorkflowStarted{}},
		{NodeVisitedEvent, &NodeVisited{}},
		{ActionFailedEvent, &ActionFailed{}},
		{WorkflowCompletedEvent, &WorkflowCompleted{}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.eventType), func(t *testing.T) {
			event, ok := New(tc.eventType)
			assert.True(t, ok)
			assert.IsType(t, tc.expected, event)
			assert.Equal(t, tc.eventType, event.(interface{ GetType() EventType }).GetType())
		})
	}

	_, ok := New("workflow.paused")
	assert.False(t, ok)
}
