// Package schema validates workflow documents before they reach the engine.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
	json "github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed workflow.schema.json
var workflowSchema []byte

var workflowSchemaLoader = gojsonschema.NewBytesLoader(workflowSchema)

// ErrInvalidWorkflow is wrapped by every validation failure.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// ValidationError lists every problem found in a workflow document.
type ValidationError struct {
	WorkflowID string
	Problems   []string
}

func (e *ValidationError) Error() string {
	if e.WorkflowID == "" {
		return "invalid workflow: " + strings.Join(e.Problems, "; ")
	}

	return fmt.Sprintf("invalid workflow %s: %s", e.WorkflowID, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidWorkflow
}

// Parse validates a raw workflow document against the JSON schema, decodes it
// and checks the graph.
func Parse(document []byte) (*models.Workflow, error) {
	result, err := gojsonschema.Validate(workflowSchemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow document: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			problems = append(problems, resultError.String())
		}

		return nil, &ValidationError{Problems: problems}
	}

	var workflow models.Workflow

	err = json.Unmarshal(document, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow document: %w", err)
	}

	err = Check(&workflow)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// Check verifies the graph of an already decoded workflow.
func Check(workflow *models.Workflow) error {
	var problems []string

	nodes := make(map[string]*models.WorkflowNode, len(workflow.Nodes))
	triggers := 0

	for _, node := range workflow.Nodes {
		if node.ID == "" {
			problems = append(problems, "node without id")

			continue
		}

		if _, exists := nodes[node.ID]; exists {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))

			continue
		}

		nodes[node.ID] = node

		problems = append(problems, checkNode(node)...)

		if node.Type == models.NodeTypeTrigger {
			triggers++
		}
	}

	if triggers == 0 {
		problems = append(problems, "workflow has no trigger node")
	}

	for _, edge := range workflow.Edges {
		source, ok := nodes[edge.Source]
		if !ok {
			problems = append(problems, fmt.Sprintf("edge %q references unknown source %q", edge.ID, edge.Source))
		}

		if _, ok := nodes[edge.Target]; !ok {
			problems = append(problems, fmt.Sprintf("edge %q references unknown target %q", edge.ID, edge.Target))
		}

		if ok && source.Type == models.NodeTypeEnd {
			problems = append(problems, fmt.Sprintf("edge %q leaves end node %q", edge.ID, edge.Source))
		}

		if ok && edge.Condition != nil && source.Type != models.NodeTypeCondition {
			problems = append(problems, fmt.Sprintf("edge %q has a condition but %q is not a condition node", edge.ID, edge.Source))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{WorkflowID: workflow.ID, Problems: problems}
	}

	return nil
}

func checkNode(node *models.WorkflowNode) []string {
	if node.Data == nil {
		return []string{fmt.Sprintf("node %q has unsupported type %q", node.ID, node.Type)}
	}

	if node.Data.NodeType() != node.Type {
		return []string{fmt.Sprintf("node %q declares type %q but carries %q data", node.ID, node.Type, node.Data.NodeType())}
	}

	switch data := node.Data.(type) {
	case *models.TriggerData:
		if !data.TriggerType.Valid() {
			return []string{fmt.Sprintf("node %q has unknown trigger type %q", node.ID, data.TriggerType)}
		}
	case *models.ActionData:
		if data.DecodeError != "" {
			return []string{fmt.Sprintf("node %q: %s", node.ID, data.DecodeError)}
		}
	case *models.ConditionData:
		if data.ConditionType == models.ConditionDateComparison && data.Unit == "" &&
			(data.Operator == models.OperatorLessThan || data.Operator == models.OperatorGreaterThan) {
			return []string{fmt.Sprintf("node %q: elapsed time comparison requires a unit", node.ID)}
		}
	case *models.DelayData:
		if data.Duration < 0 {
			return []string{fmt.Sprintf("node %q has a negative delay", node.ID)}
		}
	}

	return nil
}
