package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/simulator"
	"github.com/aretw0/chatflow/pkg/validator"
)

// Chat drives a preview from line-oriented input and prints the transcript
// as it grows. Bot messages arrive from timer callbacks, so writes to out
// are serialized.
type Chat struct {
	flow   domain.Flow
	sim    *simulator.Simulator
	logger *slog.Logger

	mu     sync.Mutex
	out    io.Writer
	render tui.Renderer
}

// NewChat starts previewing flow. Extra simulator options are applied after
// the chat's own hooks, so a caller-supplied scheduler or delays win.
func NewChat(flow domain.Flow, out io.Writer, render tui.Renderer, logger *slog.Logger, opts ...simulator.Option) *Chat {
	c := &Chat{
		flow:   flow.Clone(),
		out:    out,
		render: render,
		logger: logger,
	}

	hooks := domain.LifecycleHooks{
		OnMessage: func(e *domain.MessageEvent) {
			c.print(e.Message)
		},
		OnReset: func(e *domain.ResetEvent) {
			logger.Debug("Preview reset", "generation", e.Generation, "start_node", e.StartNodeID)
		},
		OnNodeEnter: func(e *domain.NodeEvent) {
			logger.Debug("Enter Node", "node_id", e.NodeID, "type", e.NodeType)
		},
		OnTerminal: func(e *domain.NodeEvent) {
			logger.Debug("Terminal Node", "node_id", e.NodeID)
		},
	}

	simOpts := append([]simulator.Option{
		simulator.WithLogger(logger),
		simulator.WithLifecycleHooks(hooks),
	}, opts...)
	c.sim = simulator.New(flow, simOpts...)
	return c
}

// Simulator exposes the underlying simulator.
func (c *Chat) Simulator() *simulator.Simulator {
	return c.sim
}

func (c *Chat) print(msg domain.ConversationMessage) {
	// User input is already on screen.
	if msg.Sender == domain.SenderUser {
		return
	}
	var buttons []domain.Button
	if msg.IsButtons() {
		if node, ok := c.flow.Node(msg.NodeID); ok {
			buttons = node.Buttons()
		}
	}
	c.write(tui.FormatMessage(msg, buttons))
}

func (c *Chat) write(markdown string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.render(markdown)
	if err != nil {
		out = markdown + "\n"
	}
	fmt.Fprint(c.out, out)
}

// Handle processes one line of input. It reports false when the user asked to quit.
//
// While the bot shows quick replies, a number picks the button at that
// position and any other text clicks a button with that text.
func (c *Chat) Handle(line string) bool {
	input := strings.TrimSpace(line)

	switch input {
	case "/quit", "/exit", "quit", "exit":
		return false
	case "/reset":
		c.sim.Reset()
		c.system("Conversation restarted.")
		return true
	case "/validate":
		c.validate()
		return true
	case "/help":
		c.system("Type a message, pick a button by number, or use /reset, /validate, /quit.")
		return true
	}

	if input == "" {
		return true
	}
	if c.sim.LastIsButtons() {
		c.sim.HandleButtonClick(c.resolveButton(input))
		return true
	}
	c.sim.HandleSendMessage(line)
	return true
}

func (c *Chat) resolveButton(input string) string {
	msgs := c.sim.Messages()
	if len(msgs) == 0 {
		return input
	}
	buttons := c.sim.Buttons(msgs[len(msgs)-1])
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(buttons) {
		return buttons[n-1].Text
	}
	return input
}

func (c *Chat) validate() {
	res := validator.ValidateFlow(c.flow.Nodes, c.flow.Edges)
	if res.IsValid {
		c.system("Flow can be saved.")
	} else {
		c.system("%s", res.Error)
	}
	for _, n := range validator.FindDisconnectedNodes(c.flow.Nodes, c.flow.Edges) {
		c.system("Node '%s' is not connected.", n.ID)
	}
}

// Close stops pending bot messages.
func (c *Chat) Close() {
	c.sim.Close()
}

func (c *Chat) system(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	printSystemMessage(c.out, format, args...)
}
