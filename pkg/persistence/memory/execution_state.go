package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

type stateKey struct {
	workflowID string
	leadID     string
}

type stateSlot struct {
	mu    sync.Mutex
	state *models.ExecutionState
}

// ExecutionStateRepository serializes writes per (workflow, lead); different keys never contend.
type ExecutionStateRepository struct {
	mu    sync.Mutex
	slots map[stateKey]*stateSlot
}

func NewExecutionStateRepository() *ExecutionStateRepository {
	return &ExecutionStateRepository{slots: make(map[stateKey]*stateSlot)}
}

func (r *ExecutionStateRepository) slot(workflowID, leadID string) *stateSlot {
	key := stateKey{workflowID: workflowID, leadID: leadID}

	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[key]
	if !ok {
		slot = &stateSlot{}
		r.slots[key] = slot
	}

	return slot
}

func (r *ExecutionStateRepository) Get(_ context.Context, workflowID, leadID string) (*models.ExecutionState, error) {
	slot := r.slot(workflowID, leadID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.state == nil {
		return nil, persistence.NewExecutionStateError("Get", workflowID, leadID, persistence.ErrExecutionStateNotFound)
	}

	return cloneState(slot.state), nil
}

func (r *ExecutionStateRepository) Begin(_ context.Context, start models.ExecutionStart) (bool, error) {
	slot := r.slot(start.WorkflowID, start.LeadID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	state, started := start.Apply(slot.state)
	if started {
		slot.state = state
	}

	return started, nil
}

func (r *ExecutionStateRepository) Upsert(
	_ context.Context,
	workflowID, leadID string,
	entry models.HistoryEntry,
	status models.ExecutionStatus,
) error {
	slot := r.slot(workflowID, leadID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.state == nil {
		slot.state = models.NewExecutionState(workflowID, leadID, entry.Timestamp)
	}

	slot.state.Record(entry, status)

	return nil
}

func (r *ExecutionStateRepository) MergeVariables(
	_ context.Context,
	workflowID, leadID string,
	variables map[string]any,
	now time.Time,
) error {
	slot := r.slot(workflowID, leadID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.state == nil {
		return persistence.NewExecutionStateError("MergeVariables", workflowID, leadID, persistence.ErrExecutionStateNotFound)
	}

	slot.state.MergeVariables(variables, now.UTC())

	return nil
}

func (r *ExecutionStateRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionState, error) {
	r.mu.Lock()

	slots := make([]*stateSlot, 0)

	for key, slot := range r.slots {
		if key.workflowID == workflowID {
			slots = append(slots, slot)
		}
	}

	r.mu.Unlock()

	states := make([]*models.ExecutionState, 0, len(slots))

	for _, slot := range slots {
		slot.mu.Lock()
		if slot.state != nil {
			states = append(states, cloneState(slot.state))
		}
		slot.mu.Unlock()
	}

	sort.Slice(states, func(i, j int) bool { return states[i].LeadID < states[j].LeadID })

	return states, nil
}

func cloneState(state *models.ExecutionState) *models.ExecutionState {
	copied := *state
	copied.Variables = maps.Clone(state.Variables)
	copied.History = append([]models.HistoryEntry{}, state.History...)

	return &copied
}
