// Package prompt supplies operator decisions to interactive workflows.
//
// Workflows ask a Question and interpret the free-text answer themselves. Production wiring
// uses a Console; tests and replays use a Script.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// ErrNoInput is returned when no further answers are available.
var ErrNoInput = errors.New("no more input")

type Kind string

type Question struct {
	Kind    Kind
	Text    string
	Default string
}

type Asker interface {
	Ask(ctx context.Context, q Question) (string, error)
}

// Notifier is implemented by askers that can show informational lines to the operator.
type Notifier interface {
	Notify(msg string)
}

// Notify writes msg through a when it supports notifications.
func Notify(a Asker, format string, args ...any) {
	if n, ok := a.(Notifier); ok {
		n.Notify(fmt.Sprintf(format, args...))
	}
}

type Console struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

func (c *Console) Ask(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(c.out, q.Text); err != nil {
		return "", errors.Wrap(err, "write prompt")
	}
	line, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", errors.Wrap(err, "read answer")
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) Notify(msg string) {
	fmt.Fprintln(c.out, msg)
}

type Answer struct {
	Kind  Kind   `yaml:"kind,omitempty"`
	Value string `yaml:"value"`
}

// Script replays recorded answers in order. An answer with a Kind only matches a question
// of the same kind.
type Script struct {
	answers []Answer
	pos     int
	asked   []Question
	notes   []string
}

func NewScript(answers ...Answer) *Script {
	return &Script{answers: answers}
}

// Values builds a script of kind-agnostic answers.
func Values(values ...string) *Script {
	answers := make([]Answer, len(values))
	for i, v := range values {
		answers[i] = Answer{Value: v}
	}
	return NewScript(answers...)
}

type scriptFile struct {
	Answers []Answer `yaml:"answers"`
}

func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var f scriptFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return NewScript(f.Answers...), nil
}

func (s *Script) Ask(ctx context.Context, q Question) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.answers) {
		return "", ErrNoInput
	}
	a := s.answers[s.pos]
	if a.Kind != "" && a.Kind != q.Kind {
		return "", errors.Errorf("scripted answer %d is for %q, asked %q", s.pos, a.Kind, q.Kind)
	}
	s.pos++
	s.asked = append(s.asked, q)
	return strings.TrimSpace(a.Value), nil
}

func (s *Script) Notify(msg string) {
	s.notes = append(s.notes, msg)
}

func (s *Script) Remaining() int { return len(s.answers) - s.pos }

// Asked lists the questions answered so far.
func (s *Script) Asked() []Question { return append([]Question(nil), s.asked...) }

func (s *Script) Notes() []string { return append([]string(nil), s.notes...) }

// Chain asks each asker in turn, moving on when one runs out of input.
func Chain(askers ...Asker) Asker {
	return &chain{askers: askers}
}

type chain struct {
	askers []Asker
}

func (c *chain) Ask(ctx context.Context, q Question) (string, error) {
	for len(c.askers) > 0 {
		v, err := c.askers[0].Ask(ctx, q)
		if errors.Is(err, ErrNoInput) {
			c.askers = c.askers[1:]
			continue
		}
		return v, err
	}
	return "", ErrNoInput
}

// Notify reaches every asker still in the chain, so the console sees context such as a
// candidate list even while a script answers, and after the script runs out.
func (c *chain) Notify(msg string) {
	for _, a := range c.askers {
		if n, ok := a.(Notifier); ok {
			n.Notify(msg)
		}
	}
}
