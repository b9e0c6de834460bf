package camera

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter asks the operator for a capture resolution.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter reading answers from in and writing
// questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Prompt reads a width and a height. An empty width selects
// DefaultResolution. Answers that are not positive integers are asked for
// again. If input ends before a full answer, DefaultResolution is returned.
func (p *Prompter) Prompt() Resolution {
	fmt.Fprintf(p.out, "Use the default resolution %s by pressing Enter.\n", DefaultResolution)

	width, empty, err := p.ask("Width: ", true)
	if err != nil || empty {
		return DefaultResolution
	}
	height, _, err := p.ask("Height: ", false)
	if err != nil {
		return DefaultResolution
	}
	return Resolution{Width: width, Height: height}
}

// ask repeats question until a positive integer is entered. With allowEmpty
// an empty line ends the question and reports empty.
func (p *Prompter) ask(question string, allowEmpty bool) (int, bool, error) {
	for {
		fmt.Fprint(p.out, question)

		line, err := p.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return 0, false, err
		}

		if line == "" && allowEmpty {
			return 0, true, nil
		}
		n, convErr := strconv.Atoi(line)
		if convErr == nil && n > 0 {
			return n, false, nil
		}

		fmt.Fprintln(p.out, "Please enter a positive whole number.")
		if err != nil {
			return 0, false, err
		}
	}
}
