/*
Package chatflow is the core of a visual chatbot flow builder: it validates
conversation graphs before they are saved and previews them as a paced chat.

# Concept

A flow is a directed graph of nodes (text messages, images, quick replies)
joined by edges. Authors edit it on a canvas; every edit produces a new
immutable revision. Before a revision is saved it must have exactly one entry
point. Any revision can be previewed at any time: the preview walks the graph
from its entry point, emitting bot messages with short delays, and restarts
whenever the flow changes.

# Key Features

  - Save gate: a flow with more than one node lacking incoming edges is rejected.
  - Lint: disconnected nodes, missing payload fields, duplicate handles.
  - Preview: a deterministic, cancellable conversation simulator.
  - Sessions: previews behind HTTP or MCP, persisted in memory or Redis.

# Usage

	studio := chatflow.New(chatflow.WithLogger(slog.Default()))
	defer studio.Close()

	ed, err := studio.Create("welcome", flow)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := ed.AddNode(domain.NodeTypeMessage, domain.Position{}); err != nil {
		log.Fatal(err)
	}

	sid, state, err := studio.Preview(ctx, "welcome")

The lower-level packages can be used on their own: pkg/validator for the
topology checks, pkg/simulator for a single preview, pkg/editor for an
in-process canvas model.
*/
package chatflow
