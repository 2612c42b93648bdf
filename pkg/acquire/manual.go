package acquire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoInput is returned when the console closes before any output is pasted.
var ErrNoInput = errors.New("no model output was entered")

const manualPrompt = "\nManual evaluation mode: paste your custom model output below.\n\nPaste model output (end with Enter):\n\n"

type manual struct {
	log logrus.FieldLogger
	in  *bufio.Reader
	out io.Writer
}

func newManual(log logrus.FieldLogger, deps Deps) *manual {
	in := deps.In
	if in == nil {
		in = os.Stdin
	}

	out := deps.Out
	if out == nil {
		out = os.Stdout
	}

	return &manual{
		log: log,
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (s *manual) Name() Mode {
	return ModeManual
}

// Acquire prints a prompt and reads a single line from the console.
func (s *manual) Acquire(ctx context.Context, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := fmt.Fprint(s.out, manualPrompt); err != nil {
		return "", fmt.Errorf("writing prompt: %w", err)
	}

	line, err := s.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading model output: %w", err)
	}

	if errors.Is(err, io.EOF) && line == "" {
		return "", ErrNoInput
	}

	return strings.TrimRight(line, "\r\n"), nil
}
