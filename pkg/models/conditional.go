package models

// ConditionType selects what a condition node inspects.
type ConditionType string

const (
	ConditionLeadProperty   ConditionType = "LEAD_PROPERTY"
	ConditionEmailProperty  ConditionType = "EMAIL_PROPERTY"
	ConditionDateComparison ConditionType = "DATE_COMPARISON"
	ConditionCustomField    ConditionType = "CUSTOM_FIELD"
	ConditionExpression     ConditionType = "EXPRESSION"
)

// Operator is a comparison applied by a condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "notEquals"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "notContains"
	OperatorGreaterThan Operator = "greaterThan"
	OperatorLessThan    Operator = "lessThan"
	OperatorIsSet       Operator = "isSet"
	OperatorIsNotSet    Operator = "isNotSet"

	// Email only.
	OperatorHasSubject  Operator = "hasSubject"
	OperatorHasBody     Operator = "hasBody"
	OperatorIsOpened    Operator = "isOpened"
	OperatorIsNotOpened Operator = "isNotOpened"

	// Date comparison only.
	OperatorBefore Operator = "before"
	OperatorAfter  Operator = "after"
)

// TimeUnit scales the numeric value of a date comparison.
type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
	UnitWeeks   TimeUnit = "weeks"
)

// ConditionData is the payload of a condition node.
// For EXPRESSION conditions Value holds the expression source.
type ConditionData struct {
	ConditionType ConditionType `json:"conditionType"`
	Property      string        `json:"property,omitempty"`
	Operator      Operator      `json:"operator,omitempty"`
	Value         any           `json:"value,omitempty"`
	Unit          TimeUnit      `json:"unit,omitempty"`
}

func (*ConditionData) NodeType() NodeType { return NodeTypeCondition }
