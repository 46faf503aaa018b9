package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/internal/testutils"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/schedule"
	"github.com/aretw0/chatflow/pkg/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T) (*Chat, *schedule.Manual, *bytes.Buffer) {
	t.Helper()
	var flow domain.Flow
	require.NoError(t, json.Unmarshal([]byte(testutils.WelcomeFlowJSON), &flow))

	clock := schedule.NewManual(time.Unix(0, 0))
	var out bytes.Buffer
	chat := NewChat(flow, &out, tui.Plain, logging.NewNop(), simulator.WithScheduler(clock))
	t.Cleanup(chat.Close)
	return chat, clock, &out
}

func TestChat_Conversation(t *testing.T) {
	chat, clock, out := newTestChat(t)

	clock.RunAll()
	assert.Equal(t, "**bot:** Hi there!\n", out.String())

	require.True(t, chat.Handle("hello"))
	clock.RunAll()
	assert.Contains(t, out.String(), "**bot:** Choose an option:\n1. Yes\n2. No\n")
	assert.NotContains(t, out.String(), "> hello", "user input is not echoed")

	require.True(t, chat.Handle("2"))
	msgs := chat.Simulator().Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, domain.SenderUser, last.Sender)
	assert.Equal(t, "No", last.Content, "button picked by position")
}

func TestChat_Commands(t *testing.T) {
	chat, clock, out := newTestChat(t)
	clock.RunAll()

	assert.True(t, chat.Handle("   "))
	assert.Len(t, chat.Simulator().Messages(), 1, "blank input ignored")

	assert.True(t, chat.Handle("/reset"))
	assert.Empty(t, chat.Simulator().Messages())
	assert.Contains(t, out.String(), ">>> Conversation restarted.")

	assert.True(t, chat.Handle("/validate"))
	assert.Contains(t, out.String(), ">>> Flow can be saved.")

	assert.False(t, chat.Handle("/quit"))
	assert.False(t, chat.Handle("exit"))
}

func TestReadLines(t *testing.T) {
	t.Run("Stops at EOF", func(t *testing.T) {
		var got []string
		err := readLines(context.Background(), strings.NewReader("a\nb\n"), func(s string) bool {
			got = append(got, s)
			return true
		})
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []string{"a", "b"}, got)
		assert.NoError(t, handleExecutionError(err))
	})

	t.Run("Stops when handler quits", func(t *testing.T) {
		var got []string
		err := readLines(context.Background(), strings.NewReader("a\nquit\nb\n"), func(s string) bool {
			got = append(got, s)
			return s != "quit"
		})
		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "quit"}, got)
	})

	t.Run("Stops on cancel", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := readLines(ctx, pr, func(string) bool { return true })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunPreview_Scripted(t *testing.T) {
	var flow domain.Flow
	require.NoError(t, json.Unmarshal([]byte(testutils.WelcomeFlowJSON), &flow))

	out := &lockedBuffer{}
	err := RunPreview(PreviewOptions{
		Flow:             flow,
		In:               strings.NewReader("hello\n/quit\n"),
		Out:              out,
		SimulatorOptions: []simulator.Option{simulator.WithDelays(simulator.Delays{Start: time.Millisecond, Buttons: time.Millisecond, Advance: time.Millisecond})},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "**bot:** Hi there!")
}

// lockedBuffer lets the test read output while timer goroutines may still write.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
