// Package prompt asks the operator yes/no questions.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Asker answers yes/no questions.
type Asker interface {
	Confirm(question string) (bool, error)
}

// Printer is the part of status.Printer used to show the question.
type Printer interface {
	Prompt(format string, args ...any)
}

// Reader reads one line per question from an input stream.
type Reader struct {
	in  *bufio.Reader
	out Printer
}

// NewReader returns a Reader consuming in and printing questions through out.
func NewReader(in io.Reader, out Printer) *Reader {
	return &Reader{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Confirm prints question and reports whether the answer is "y", case-insensitively.
// End of input without an answer counts as "no".
func (r *Reader) Confirm(question string) (bool, error) {
	r.out.Prompt("%s (y/n): ", question)

	line, err := r.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}

	return IsYes(line), nil
}

// IsYes reports whether answer is "y" once trimmed, ignoring case.
func IsYes(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

// Fixed answers every question the same way, for --yes style runs and tests.
type Fixed bool

// Confirm returns the fixed answer.
func (f Fixed) Confirm(string) (bool, error) {
	return bool(f), nil
}
