package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// rs is the ASCII record separator opening a JSON text sequence value
// (RFC 8142).
const rs = '\x1e'

// maxValueSize bounds a single stdin JSON value.
const maxValueSize = 64 << 20

// scanValues feeds each JSON value from the input to fn. Lines starting
// with RS open a value that spans lines until the next RS or EOF; otherwise
// every non-empty line is one value. An unterminated RS buffer at EOF is
// flushed if non-empty.
func scanValues(r io.Reader, fn func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxValueSize)

	var buf strings.Builder
	buffering := false

	flush := func() error {
		if !buffering {
			return nil
		}
		value := strings.TrimSpace(buf.String())
		buf.Reset()
		buffering = false
		if value == "" {
			return nil
		}
		return fn(value)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) > 0 && line[0] == rs {
			if err := flush(); err != nil {
				return err
			}
			buffering = true
			buf.WriteString(line[1:])
			continue
		}
		if buffering {
			buf.WriteString("\n")
			buf.WriteString(line)
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if err := fn(trimmed); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return flush()
}

// valuesFrom runs fn over the command-line args when present, otherwise
// over stdin.
func valuesFrom(args []string, stdin io.Reader, fn func(string) error) error {
	if len(args) > 0 {
		for _, arg := range args {
			if err := fn(arg); err != nil {
				return err
			}
		}
		return nil
	}
	return scanValues(stdin, fn)
}

// emitter writes output values, optionally as an RS-delimited JSON text
// sequence.
type emitter struct {
	w   io.Writer
	seq bool
}

func (e emitter) emit(value string) {
	if e.seq {
		fmt.Fprintf(e.w, "%c\n", rs)
	}
	fmt.Fprintln(e.w, value)
}
