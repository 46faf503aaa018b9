package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/simulator"
	"golang.org/x/term"
)

const idlePoll = 20 * time.Millisecond

// PreviewOptions contains the configuration for the preview command.
type PreviewOptions struct {
	Flow  domain.Flow
	Debug bool
	// Plain disables the banner and markdown styling even on a terminal.
	Plain bool

	In  io.Reader
	Out io.Writer

	// SimulatorOptions are applied last, e.g. to shorten delays.
	SimulatorOptions []simulator.Option
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// RunPreview chats with a flow until the input ends, the user quits or a signal arrives.
func RunPreview(opts PreviewOptions) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := createLogger(opts.Debug)

	interactive := !opts.Plain && isTerminal(opts.In) && isTerminal(opts.Out)
	render := tui.Plain
	if interactive {
		tui.PrintBanner(opts.Out, chatflow.Version)
		render = tui.NewRenderer()
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	chat := NewChat(opts.Flow, opts.Out, render, logger, opts.SimulatorOptions...)
	defer chat.Close()

	if interactive {
		chat.system("Type /help for commands.")
	}

	handle := chat.Handle
	if !interactive {
		// Scripted input waits for the bot to finish each turn.
		handle = func(line string) bool {
			waitIdle(sigCtx, chat)
			return chat.Handle(line)
		}
	}

	err := readLines(sigCtx, opts.In, handle)
	if err == io.EOF && !interactive {
		waitIdle(sigCtx, chat)
	}
	if sig := sigCtx.Signal(); sig != nil {
		fmt.Fprintln(opts.Out)
		chat.system("Interrupted (%s).", sig)
	}
	return handleExecutionError(err)
}

// waitIdle blocks until chat has no pending bot messages or ctx is done.
func waitIdle(ctx context.Context, chat *Chat) {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for chat.Simulator().Pending() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// readLines feeds lines from r to handle until it returns false, r is
// exhausted or ctx is cancelled. Scanning runs on its own goroutine so a
// blocked read does not hold up cancellation.
func readLines(ctx context.Context, r io.Reader, handle func(string) bool) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
			return
		}
		errs <- io.EOF
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case line := <-lines:
			if !handle(line) {
				return nil
			}
		}
	}
}
