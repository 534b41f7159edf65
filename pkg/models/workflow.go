// Package models defines the core domain models for lead workflow automation
package models

import "time"

// Workflow is a directed graph of typed nodes executed per lead.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"                 validate:"required,min=3"`
	Description string          `json:"description"`
	IsActive    bool            `json:"isActive"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*WorkflowEdge `json:"edges"`
	Owner       string          `json:"owner,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Node returns the node with the given id.
func (w *Workflow) Node(id string) (*WorkflowNode, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (w *Workflow) OutgoingEdges(nodeID string) []*WorkflowEdge {
	var edges []*WorkflowEdge

	for _, edge := range w.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// TriggerNodes returns every trigger node configured for triggerType.
func (w *Workflow) TriggerNodes(triggerType TriggerType) []*WorkflowNode {
	var nodes []*WorkflowNode

	for _, node := range w.Nodes {
		data, ok := node.Data.(*TriggerData)
		if ok && data.TriggerType == triggerType {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// HasTrigger reports whether the workflow declares at least one trigger node of triggerType.
func (w *Workflow) HasTrigger(triggerType TriggerType) bool {
	return len(w.TriggerNodes(triggerType)) > 0
}

// WorkflowEdge connects two nodes. A non-nil Condition guards the edge when it leaves a condition node.
type WorkflowEdge struct {
	ID        string `json:"id"`
	Source    string `json:"source"              validate:"required"`
	Target    string `json:"target"              validate:"required"`
	Condition *bool  `json:"condition,omitempty"`
}

// Matches reports whether the edge should be followed for a condition result.
// Edges without a condition are always followed.
func (e *WorkflowEdge) Matches(result bool) bool {
	return e.Condition == nil || *e.Condition == result
}
