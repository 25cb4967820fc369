package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ShareInput buffers in once so successive prompts reading from it do not
// lose input to each other's buffers. Terminals are returned unchanged so
// ReadPassword can still disable echo.
func ShareInput(in io.Reader) io.Reader {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return f
	}
	if br, ok := in.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(in)
}

// ReadPassword reads a secret without echo when in is a terminal, and falls
// back to reading one line otherwise (pipes, tests).
func ReadPassword(in io.Reader, out io.Writer, prompt string) (string, error) {
	if prompt != "" {
		_, _ = fmt.Fprint(out, FormatPrompt(prompt))
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
