package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mikey/llm-inbox-triage/internal/display"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

// errPromptAbandoned is returned once a prompt was interrupted while waiting
// for an answer
var errPromptAbandoned = errors.New("confirmation prompt was interrupted")

// terminalPrompt asks the operator to confirm cost estimates. Accounts
// running in parallel take turns. Input is read by a single goroutine that
// lives until the input ends; after a cancelled prompt every further request
// is declined so a late answer is never applied to a different estimate.
type terminalPrompt struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool

	start     sync.Once
	lines     chan answer
	readErr   error
	abandoned bool
}

type answer struct {
	line string
	err  error
}

func newTerminalPrompt(in io.Reader, out io.Writer, interactive bool) *terminalPrompt {
	return &terminalPrompt{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
		lines:       make(chan answer, 1),
	}
}

func (p *terminalPrompt) readLines() {
	for {
		line, err := p.in.ReadString('\n')
		p.lines <- answer{line, err}
		if err != nil {
			return
		}
	}
}

// Confirm implements safety.ConfirmFunc
func (p *terminalPrompt) Confirm(ctx context.Context, est safety.CostEstimate) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.out, display.Estimate(est))
	switch {
	case !p.interactive:
		fmt.Fprintln(p.out, "Not running on a terminal, declining. Rerun with --yes to accept.")
		return false, nil
	case p.abandoned:
		return false, errPromptAbandoned
	case p.readErr != nil:
		fmt.Fprintln(p.out, "No more input, declining.")
		return false, nil
	}
	fmt.Fprint(p.out, "Proceed? [y/N] ")

	p.start.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		p.abandoned = true
		fmt.Fprintln(p.out)
		return false, ctx.Err()
	case a := <-p.lines:
		if a.err != nil {
			p.readErr = a.err
			if a.err != io.EOF {
				return false, fmt.Errorf("failed to read confirmation: %w", a.err)
			}
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// isTerminal reports whether f is a character device
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
