package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrExhausted is returned by a Source that has no more answers to give.
// Callers treat it as "stop correcting and keep what we have".
var ErrExhausted = errors.New("answer source exhausted")

// Source supplies answers to correction prompts. The production source asks
// a human operator on the terminal; tests and batch runs replay a scripted
// answer sequence.
type Source interface {
	// Ask presents a label and returns the answer. An empty answer is a
	// valid response; callers decide what it means (usually "keep the
	// current value").
	Ask(label string) (string, error)

	// Confirm asks a yes/no question.
	Confirm(label string) (bool, error)
}

// Terminal implements Source over an io.Reader / io.Writer pair.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewTerminal creates a Terminal reading answers from r and writing prompts
// to w.
func NewTerminal(r io.Reader, w io.Writer) *Terminal {
	return &Terminal{in: bufio.NewScanner(r), out: w}
}

func (t *Terminal) Ask(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", fmt.Errorf("reading answer: %w", err)
		}
		return "", ErrExhausted
	}
	return strings.TrimSpace(t.in.Text()), nil
}

func (t *Terminal) Confirm(label string) (bool, error) {
	for {
		answer, err := t.Ask(label + " (yes/no)")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		fmt.Fprintln(t.out, "Please answer yes or no.")
	}
}

// Script replays a fixed sequence of answers and returns ErrExhausted when
// the sequence is drained.
type Script struct {
	answers []string
	next    int
}

// NewScript creates a Script that answers prompts in order.
func NewScript(answers ...string) *Script {
	return &Script{answers: answers}
}

func (s *Script) Ask(label string) (string, error) {
	if s.next >= len(s.answers) {
		return "", ErrExhausted
	}
	answer := s.answers[s.next]
	s.next++
	return answer, nil
}

func (s *Script) Confirm(label string) (bool, error) {
	answer, err := s.Ask(label)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "yes", "y":
		return true, nil
	}
	return false, nil
}

// Remaining reports how many scripted answers are left unused.
func (s *Script) Remaining() int {
	return len(s.answers) - s.next
}

// AskDecimal asks for a number, re-asking on unparseable input up to the
// given number of attempts. A drained source surfaces as ErrExhausted.
func AskDecimal(src Source, label string, attempts int) (decimal.Decimal, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		answer, err := src.Ask(label)
		if err != nil {
			return decimal.Decimal{}, err
		}
		value, err := decimal.NewFromString(answer)
		if err == nil {
			return value, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("no valid number after %d attempts: %w", attempts, ErrExhausted)
}
