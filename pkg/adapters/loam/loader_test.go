package loam

import (
	"context"
	"testing"

	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports/tests"
	"github.com/aretw0/loam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supportFlowMarkdown = `---
title: Support
nodes:
  - id: ask
    type: message
    position: {x: 10, y: 20}
    data:
      label: How can we help?
  - id: photo
    type: image
    data:
      label: Here is a screenshot
      imageUrl: https://example.com/help.png
edges:
  - id: ask-photo
    source: ask
    target: photo
---
Routes customers to the help article.
`

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	_, repo := testutils.SetupFlowLibrary(t, files)
	return New(loam.NewTypedRepository[FlowMetadata](repo))
}

func TestLoader_Contract(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"welcome.json": testutils.WelcomeFlowJSON,
		"support.md":   supportFlowMarkdown,
	})

	tests.FlowLoaderContractTest(t, loader, map[string][]string{
		"welcome": {"greet", "menu"},
		"support": {"ask", "photo"},
	})
}

func TestLoader_Get_DecodesPayloads(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"welcome.json": testutils.WelcomeFlowJSON,
		"support.md":   supportFlowMarkdown,
	})
	ctx := context.Background()

	welcome, err := loader.GetFlow(ctx, "welcome")
	require.NoError(t, err)
	menu, ok := welcome.Node("menu")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeQuickReplies, menu.Type, "canvas aliases are accepted")
	assert.Len(t, menu.Buttons(), 2)
	assert.Equal(t, float64(120), menu.Position.Y)

	support, err := loader.Get(ctx, "support.md")
	require.NoError(t, err)
	assert.Equal(t, "Support", support.Title)
	assert.Equal(t, "Routes customers to the help article.", support.Description)
	photo, _ := support.Flow.Node("photo")
	assert.Equal(t, "https://example.com/help.png", photo.Data.(domain.ImagePayload).ImageURL)
}

func TestLoader_DeclaredIDWins(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"2024-onboarding.json": `{"id": "onboarding", "nodes": [{"id": "a", "type": "message", "data": {"label": "A"}}]}`,
	})

	ids, err := loader.ListFlows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"onboarding"}, ids)

	flow, err := loader.GetFlow(context.Background(), "onboarding")
	require.NoError(t, err)
	assert.Len(t, flow.Nodes, 1)
}

func TestLoader_ListFlows_DetectsCollisions(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"foo.md":   "---\nid: foo\n---\nExplicit ID",
		"foo.json": `{"id": "foo"}`,
	})

	_, err := loader.ListFlows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestLoader_InvalidFlow(t *testing.T) {
	loader := newLoader(t, map[string]string{
		"broken.json": `{"nodes": [{"id": "x", "type": "condition"}]}`,
	})

	_, err := loader.GetFlow(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrUnknownNodeType)
}
