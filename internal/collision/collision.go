// Package collision decides what to do when a run is about to write a file
// that already exists. The decision is made before any pages are sliced or
// merged, so output from an earlier run is never silently mixed with this one.
package collision

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/lairdgrouplancaster/MoodleMeld/pkg/types"
)

// Decision is the outcome of Resolve.
type Decision int

const (
	Write Decision = iota
	Skip
)

// ErrNotInteractive is returned by Terminal when stdin is not a terminal.
var ErrNotInteractive = errors.New("cannot prompt: stdin is not a terminal")

// ExistsError reports an existing output the policy refused to replace.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("output already exists: %s", e.Path)
}

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Parse validates a policy name. Empty means fail.
func Parse(s string) (types.CollisionPolicy, error) {
	switch p := types.CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return types.CollisionFail, nil
	case types.CollisionOverwrite, types.CollisionSkip, types.CollisionFail, types.CollisionPrompt:
		return p, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q: use overwrite, skip, fail, or prompt", s)
	}
}

// Resolve decides whether path may be written. A path that does not exist is
// always written.
func Resolve(path string, policy types.CollisionPolicy, c Confirmer) (Decision, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Write, nil
		}
		return Skip, fmt.Errorf("checking %s: %w", path, err)
	}

	switch policy {
	case types.CollisionOverwrite:
		return Write, nil
	case types.CollisionSkip:
		return Skip, nil
	case types.CollisionPrompt:
		if c == nil {
			return Skip, ErrNotInteractive
		}
		ok, err := c.Confirm(fmt.Sprintf("%s already exists. Overwrite it?", path))
		if err != nil {
			return Skip, err
		}
		if ok {
			return Write, nil
		}
		return Skip, nil
	default:
		return Skip, &ExistsError{Path: path}
	}
}

// Terminal prompts on Out and reads the answer from In.
type Terminal struct {
	In  *os.File
	Out io.Writer
}

// Confirm asks question and reports whether the answer starts with y.
func (t Terminal) Confirm(question string) (bool, error) {
	if !term.IsTerminal(int(t.In.Fd())) {
		return false, ErrNotInteractive
	}
	fmt.Fprintf(t.Out, "%s [y/N] ", question)
	return readAnswer(t.In)
}

func readAnswer(r io.Reader) (bool, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(answer, "y"), nil
}

// Fixed answers every question the same way.
type Fixed bool

func (f Fixed) Confirm(string) (bool, error) { return bool(f), nil }
