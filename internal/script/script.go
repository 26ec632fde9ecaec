// Package script parses and replays annotation command scripts.
//
// A script holds one command per line. Blank lines and lines starting with
// '#' are ignored. Coordinates are display pixels, label indices are 0-based.
package script

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/session"
)

// Step is one parsed script line.
type Step struct {
	Line     int
	Verb     string
	Commands []session.Command
}

// Summary counts outcomes of a replay.
type Summary struct {
	OK       int
	Warnings int
	Fatal    int
}

var arity = map[string]int{
	"next":     0,
	"box":      4,
	"begin":    2,
	"move":     2,
	"end":      2,
	"label":    1,
	"remove":   2,
	"undo":     0,
	"reset":    0,
	"mode":     0,
	"crop":     0,
	"progress": 0,
}

// LoadFile parses the script at path. "-" reads standard input.
func LoadFile(path string) ([]Step, error) {
	if path == "-" {
		return Parse(os.Stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open script")
	}
	defer func() {
		_ = file.Close()
	}()
	return Parse(file)
}

// Parse reads a script.
func Parse(r io.Reader) ([]Step, error) {
	var steps []Step
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		step, err := parseLine(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		step.Line = line
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read script")
	}
	return steps, nil
}

func parseLine(text string) (Step, error) {
	verb, rest, _ := strings.Cut(text, " ")
	verb = strings.ToLower(verb)
	rest = strings.TrimSpace(rest)
	if verb == "load" {
		if rest == "" {
			return Step{}, errors.New("load needs a path")
		}
		return Step{Verb: verb, Commands: []session.Command{session.LoadImage{Path: rest}}}, nil
	}

	want, known := arity[verb]
	if !known {
		return Step{}, errors.WithHint(errors.Newf("unknown verb %q", verb),
			"verbs: next, box, begin, move, end, label, remove, undo, reset, mode, crop, load, progress")
	}
	fields := strings.Fields(rest)
	if len(fields) != want {
		return Step{}, errors.Newf("%s takes %d arguments, got %d", verb, want, len(fields))
	}
	args := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Step{}, errors.Wrapf(err, "%s argument %d", verb, i+1)
		}
		args[i] = n
	}

	step := Step{Verb: verb}
	switch verb {
	case "next":
		step.Commands = []session.Command{session.Advance{}}
	case "box":
		step.Commands = []session.Command{
			session.BeginDraw{At: image.Pt(args[0], args[1])},
			session.FinalizeDraw{To: image.Pt(args[2], args[3])},
		}
	case "begin":
		step.Commands = []session.Command{session.BeginDraw{At: image.Pt(args[0], args[1])}}
	case "move":
		step.Commands = []session.Command{session.UpdateDraw{To: image.Pt(args[0], args[1])}}
	case "end":
		step.Commands = []session.Command{session.FinalizeDraw{To: image.Pt(args[0], args[1])}}
	case "label":
		step.Commands = []session.Command{session.LabelLast{Index: args[0]}}
	case "remove":
		step.Commands = []session.Command{session.RemoveBoxAt{At: image.Pt(args[0], args[1])}}
	case "undo":
		step.Commands = []session.Command{session.UndoLast{}}
	case "reset":
		step.Commands = []session.Command{session.ResetAll{}}
	case "mode":
		step.Commands = []session.Command{session.ToggleMode{}}
	case "crop":
		step.Commands = []session.Command{session.ToggleCropMode{}}
	}
	return step, nil
}

// Run dispatches every step against s and prints one line per outcome to w.
// A step stops at its first refused command.
func Run(s *session.Session, steps []Step, w io.Writer) (Summary, error) {
	var sum Summary
	for _, step := range steps {
		if step.Verb == "progress" {
			done, total := s.Progress()
			if _, err := fmt.Fprintf(w, "%d: progress %d/%d (%s)\n", step.Line, done, total, s.State()); err != nil {
				return sum, errors.Wrap(err, "failed to write output")
			}
			sum.OK++
			continue
		}
		out := session.Outcome{Status: session.StatusOK}
		for _, cmd := range step.Commands {
			out = s.Dispatch(cmd)
			if out.Status != session.StatusOK {
				break
			}
		}
		switch out.Status {
		case session.StatusWarning:
			sum.Warnings++
		case session.StatusFatal:
			sum.Fatal++
		default:
			sum.OK++
		}
		if err := printOutcome(w, step, out); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func printOutcome(w io.Writer, step Step, out session.Outcome) error {
	msg := out.Message
	if msg == "" {
		msg = "done"
	}
	line := fmt.Sprintf("%d: %s [%s] %s", step.Line, step.Verb, out.Status, msg)
	if out.Err != nil {
		if hints := errors.GetAllHints(out.Err); len(hints) > 0 {
			line += " (hint: " + strings.Join(hints, "; ") + ")"
		}
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	return nil
}
