package models

import "time"

// Task is a follow-up created for a lead.
type Task struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"leadId"`
	WorkflowID  string    `json:"workflowId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	AssigneeID  string    `json:"assigneeId,omitempty"`
	DueAt       time.Time `json:"dueAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Appointment is a meeting booked with a lead.
type Appointment struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"leadId"`
	WorkflowID  string    `json:"workflowId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AssigneeID  string    `json:"assigneeId,omitempty"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Notification is a message delivered to a CRM user.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	LeadID     string    `json:"leadId"`
	WorkflowID string    `json:"workflowId"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}
