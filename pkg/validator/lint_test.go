package validator_test

import (
	"testing"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/validator"
	"github.com/stretchr/testify/assert"
)

func hasIssue(issues []validator.Issue, nodeID, message string) bool {
	for _, i := range issues {
		if i.NodeID == nodeID && (message == "" || i.Message == message) {
			return true
		}
	}
	return false
}

func TestLint_CleanFlow(t *testing.T) {
	flow := domain.NewFlow(
		[]domain.Node{
			{ID: "a", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{Label: "Hi"}},
			{ID: "b", Type: domain.NodeTypeQuickReplies, Data: domain.QuickRepliesPayload{
				Label:   "Pick",
				Buttons: []domain.Button{{ID: "1", Text: "Yes"}, {ID: "2", Text: "No"}},
			}},
		},
		[]domain.Edge{edge("a", "b")},
	)

	assert.Empty(t, validator.Lint(flow))
}

func TestLint_PayloadProblems(t *testing.T) {
	flow := domain.NewFlow(
		[]domain.Node{
			{ID: "qr", Type: domain.NodeTypeQuickReplies, Data: domain.QuickRepliesPayload{
				Label:   "Pick",
				Buttons: []domain.Button{{ID: "1", Text: "Yes"}, {ID: "1", Text: ""}},
			}},
			{ID: "img", Type: domain.NodeTypeImage, Data: domain.ImagePayload{Label: "Look", ImageURL: "not a url"}},
			{ID: "blank", Type: domain.NodeTypeMessage, Data: domain.MessagePayload{}},
		},
		[]domain.Edge{edge("qr", "img"), edge("img", "blank"), edge("blank", "missing")},
	)

	issues := validator.Lint(flow)

	assert.True(t, hasIssue(issues, "qr", "button ids must be unique"))
	assert.True(t, hasIssue(issues, "qr", "is required"))
	assert.True(t, hasIssue(issues, "img", "is not a valid URL"))
	assert.True(t, hasIssue(issues, "blank", ""))

	var dangling bool
	for _, i := range issues {
		if i.EdgeID == "blank-missing" {
			dangling = true
		}
	}
	assert.True(t, dangling, "edge to unknown node should be reported")
}

func TestLint_DoesNotAffectValidity(t *testing.T) {
	flow := domain.NewFlow(
		[]domain.Node{{ID: "a", Type: domain.NodeTypeImage, Data: domain.ImagePayload{ImageURL: "::"}}},
		nil,
	)
	assert.NotEmpty(t, validator.Lint(flow))
	assert.True(t, validator.ValidateFlow(flow.Nodes, flow.Edges).IsValid)
}
