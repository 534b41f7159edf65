package models

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// ActionType identifies the side effect an action node performs.
type ActionType string

const (
	ActionSendEmail         ActionType = "SEND_EMAIL"
	ActionUpdateLead        ActionType = "UPDATE_LEAD"
	ActionCreateTask        ActionType = "CREATE_TASK"
	ActionCreateAppointment ActionType = "CREATE_APPOINTMENT"
	ActionNotifyUser        ActionType = "NOTIFY_USER"
	ActionGenerateAIContent ActionType = "GENERATE_AI_CONTENT"
	ActionAnalyzeEmail      ActionType = "ANALYZE_EMAIL"
	ActionCategorizeLead    ActionType = "CATEGORIZE_LEAD"
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionSendEmail,
	ActionUpdateLead,
	ActionCreateTask,
	ActionCreateAppointment,
	ActionNotifyUser,
	ActionGenerateAIContent,
	ActionAnalyzeEmail,
	ActionCategorizeLead,
}

// ActionConfig is the closed set of typed action configurations.
type ActionConfig interface {
	ActionType() ActionType
}

// ActionData is the payload of an action node.
// Config is nil when the action type is unknown or its config could not be decoded;
// DecodeError then carries the reason and the action fails when executed.
type ActionData struct {
	ActionType  ActionType   `json:"actionType"`
	Config      ActionConfig `json:"config,omitempty"`
	DecodeError string       `json:"-"`
}

func (*ActionData) NodeType() NodeType { return NodeTypeAction }

type rawActionData struct {
	ActionType ActionType      `json:"actionType"`
	Config     json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the config into the struct registered for the action type.
func (a *ActionData) UnmarshalJSON(data []byte) error {
	var raw rawActionData

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	a.ActionType = raw.ActionType
	a.Config = nil
	a.DecodeError = ""

	config := newActionConfig(raw.ActionType)
	if config == nil {
		a.DecodeError = fmt.Sprintf("unknown action type %q", raw.ActionType)

		return nil
	}

	if len(raw.Config) > 0 && string(raw.Config) != "null" {
		err = json.Unmarshal(raw.Config, config)
		if err != nil {
			a.DecodeError = fmt.Sprintf("invalid %s config: %v", raw.ActionType, err)

			return nil
		}
	}

	a.Config = config

	return nil
}

func newActionConfig(actionType ActionType) ActionConfig {
	switch actionType {
	case ActionSendEmail:
		return &SendEmailConfig{}
	case ActionUpdateLead:
		return &UpdateLeadConfig{}
	case ActionCreateTask:
		return &CreateTaskConfig{}
	case ActionCreateAppointment:
		return &CreateAppointmentConfig{}
	case ActionNotifyUser:
		return &NotifyUserConfig{}
	case ActionGenerateAIContent:
		return &GenerateAIContentConfig{}
	case ActionAnalyzeEmail:
		return &AnalyzeEmailConfig{}
	case ActionCategorizeLead:
		return &CategorizeLeadConfig{}
	default:
		return nil
	}
}

// SendEmailConfig sends an email to the lead. Subject and Body accept {{key}} and {{lead.field}} placeholders.
type SendEmailConfig struct {
	AccountID string `json:"accountId,omitempty"`
	To        string `json:"to,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

func (*SendEmailConfig) ActionType() ActionType { return ActionSendEmail }

// UpdateLeadConfig is a partial update. Nil fields are left untouched and custom fields are merged.
type UpdateLeadConfig struct {
	Status       *string        `json:"status,omitempty"`
	Score        *int           `json:"score,omitempty"`
	Company      *string        `json:"company,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

func (*UpdateLeadConfig) ActionType() ActionType { return ActionUpdateLead }

// CreateTaskConfig creates a follow-up task for the lead.
type CreateTaskConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueInDays   int    `json:"dueInDays,omitempty"`
	Priority    string `json:"priority,omitempty"`
	AssigneeID  string `json:"assigneeId,omitempty"`
}

func (*CreateTaskConfig) ActionType() ActionType { return ActionCreateTask }

// CreateAppointmentConfig books an appointment with the lead.
type CreateAppointmentConfig struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	StartInHours    int    `json:"startInHours,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	Location        string `json:"location,omitempty"`
	AssigneeID      string `json:"assigneeId,omitempty"`
}

func (*CreateAppointmentConfig) ActionType() ActionType { return ActionCreateAppointment }

// NotifyUserConfig notifies a CRM user about the lead.
type NotifyUserConfig struct {
	UserID  string `json:"userId"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

func (*NotifyUserConfig) ActionType() ActionType { return ActionNotifyUser }

// GenerateAIContentConfig generates text from a prompt and optionally emails it to the lead.
type GenerateAIContentConfig struct {
	Prompt       string `json:"prompt"`
	ModelID      string `json:"modelId,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Length       string `json:"length,omitempty"`
	SendEmail    bool   `json:"sendEmail,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	Subject      string `json:"subject,omitempty"`
	VariableName string `json:"variableName,omitempty"`
}

func (*GenerateAIContentConfig) ActionType() ActionType { return ActionGenerateAIContent }

// AnalyzeEmailConfig analyzes an email. Without EmailID the lead's latest email is used.
type AnalyzeEmailConfig struct {
	EmailID string `json:"emailId,omitempty"`
}

func (*AnalyzeEmailConfig) ActionType() ActionType { return ActionAnalyzeEmail }

// CategorizeLeadConfig assigns a category, either explicitly or by auto-detection over the latest email.
type CategorizeLeadConfig struct {
	Category   LeadCategory `json:"category,omitempty"`
	AutoDetect bool         `json:"autoDetect,omitempty"`
	EmailID    string       `json:"emailId,omitempty"`
}

func (*CategorizeLeadConfig) ActionType() ActionType { return ActionCategorizeLead }
