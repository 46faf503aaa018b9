package validator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/chatflow/pkg/domain"
	playground "github.com/go-playground/validator/v10"
)

// Severity ranks lint issues.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a single advisory finding about a flow.
type Issue struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	EdgeID   string   `json:"edge_id,omitempty"`
	Field    string   `json:"field,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	switch {
	case i.NodeID != "" && i.Field != "":
		return fmt.Sprintf("[%s] node %s: %s: %s", i.Severity, i.NodeID, i.Field, i.Message)
	case i.NodeID != "":
		return fmt.Sprintf("[%s] node %s: %s", i.Severity, i.NodeID, i.Message)
	case i.EdgeID != "":
		return fmt.Sprintf("[%s] edge %s: %s", i.Severity, i.EdgeID, i.Message)
	default:
		return fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	}
}

var (
	structValidator     *playground.Validate
	structValidatorOnce sync.Once
)

func payloadValidator() *playground.Validate {
	structValidatorOnce.Do(func() {
		structValidator = playground.New(playground.WithRequiredStructEnabled())
	})
	return structValidator
}

// Lint inspects payloads and wiring beyond what ValidateFlow enforces.
// The result never affects whether a flow may be saved.
func Lint(flow domain.Flow) []Issue {
	issues := []Issue{}

	known := make(map[string]bool, len(flow.Nodes))
	for _, n := range flow.Nodes {
		known[n.ID] = true
		issues = append(issues, lintPayload(n)...)
	}

	for _, e := range flow.Edges {
		if !known[e.Source] {
			issues = append(issues, Issue{Severity: SeverityError, EdgeID: e.ID, Message: fmt.Sprintf("source node %q does not exist", e.Source)})
		}
		if !known[e.Target] {
			issues = append(issues, Issue{Severity: SeverityError, EdgeID: e.ID, Message: fmt.Sprintf("target node %q does not exist", e.Target)})
		}
		if e.Source == e.Target {
			issues = append(issues, Issue{Severity: SeverityWarning, EdgeID: e.ID, Message: "edge loops back to its own node"})
		}
	}

	for _, k := range DuplicateSourceHandles(flow.Edges) {
		issues = append(issues, Issue{Severity: SeverityError, NodeID: k.Node, Message: fmt.Sprintf("output handle %q has more than one connection", k.Handle)})
	}

	for _, n := range FindDisconnectedNodes(flow.Nodes, flow.Edges) {
		issues = append(issues, Issue{Severity: SeverityWarning, NodeID: n.ID, Message: "node is not connected to the flow"})
	}

	return issues
}

func lintPayload(n domain.Node) []Issue {
	if n.Data == nil {
		return []Issue{{Severity: SeverityError, NodeID: n.ID, Message: "node has no content"}}
	}

	var issues []Issue
	if n.Label() == "" {
		issues = append(issues, Issue{Severity: SeverityWarning, NodeID: n.ID, Field: "label", Message: "empty label, the preview will fall back to the default greeting"})
	}

	err := payloadValidator().Struct(n.Data)
	if err == nil {
		return issues
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return append(issues, Issue{Severity: SeverityError, NodeID: n.ID, Message: err.Error()})
	}
	for _, fe := range fieldErrs {
		issues = append(issues, Issue{
			Severity: SeverityError,
			NodeID:   n.ID,
			Field:    fe.Namespace(),
			Message:  describe(fe),
		})
	}
	return issues
}

func describe(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "is not a valid URL"
	case "unique":
		return "button ids must be unique"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
