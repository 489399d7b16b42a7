// Package persist implements file-based Step/Sequence serialization: a Step
// is one text file whose leading lines are script-comment metadata
// followed by the script body verbatim; a Sequence is a directory of such
// files named after the Sequence's (escaped) label.
//
// This package exists purely for round-trip fidelity; it carries no
// dependency beyond the standard library, since the file framing is a
// bespoke format no pack library models any more narrowly than generic
// text I/O.
package persist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/taskolib/taskolib/sequence"
	"github.com/taskolib/taskolib/step"
	"github.com/taskolib/taskolib/variable"
)

// escapeChars is the fixed set of bytes percent-hex-escaped in a label,
// beyond bytes <= 0x20.
const escapeChars = `/\:?*"'<>|$&`

// EscapeLabel percent-hex-escapes the characters in escapeChars and every
// byte <= 0x20 in label, so the result is safe to use as a file or
// directory name on every common filesystem.
func EscapeLabel(label string) string {
	var b strings.Builder
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c <= 0x20 || strings.IndexByte(escapeChars, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnescapeLabel reverses EscapeLabel for labels that contain no '%'. A '%'
// is not in the escape set, so EscapeLabel leaves it as is and
// UnescapeLabel then reads it as the start of an escape: such a label does
// not round-trip.
func UnescapeLabel(escaped string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(escaped); i++ {
		if escaped[i] != '%' {
			b.WriteByte(escaped[i])
			continue
		}
		if i+2 >= len(escaped) {
			return "", fmt.Errorf("persist: truncated escape at byte %d", i)
		}
		v, err := strconv.ParseUint(escaped[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("persist: invalid escape %q: %w", escaped[i:i+3], err)
		}
		b.WriteByte(byte(v))
		i += 2
	}
	return b.String(), nil
}

const (
	metaType      = "type"
	metaLabel     = "label"
	metaVars      = "use context variables"
	metaModified  = "last modification"
	metaExecuted  = "last execution"
	metaTimeout   = "timeout"
	timeoutNone   = "infinity"
	commentPrefix = "-- "
)

// timestampLayout is the render format for persisted timestamps: always
// UTC, rendered as "YYYY-MM-DD HH:MM:SS UTC".
const timestampLayout = "2006-01-02 15:04:05"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout) + " UTC"
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, " UTC")
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// WriteStep writes s to w as a single step file: comment-metadata header,
// a blank line, then the script body verbatim.
func WriteStep(w io.Writer, s *step.Step) error {
	bw := bufio.NewWriter(w)

	names := s.VariableNames()
	strNames := make([]string, len(names))
	for i, n := range names {
		strNames[i] = n.String()
	}

	writeLine := func(key, value string) error {
		_, err := fmt.Fprintf(bw, "%s%s: %s\n", commentPrefix, key, value)
		return err
	}

	if err := writeLine(metaType, s.Type().String()); err != nil {
		return err
	}
	if err := writeLine(metaLabel, s.Label()); err != nil {
		return err
	}
	if err := writeLine(metaVars, strings.Join(strNames, ", ")); err != nil {
		return err
	}
	if err := writeLine(metaModified, formatTimestamp(s.LastModified())); err != nil {
		return err
	}
	if last, ok := s.LastExecuted(); ok {
		if err := writeLine(metaExecuted, formatTimestamp(last)); err != nil {
			return err
		}
	} else {
		if err := writeLine(metaExecuted, ""); err != nil {
			return err
		}
	}
	timeoutStr := timeoutNone
	if s.Timeout() != step.NoTimeout {
		timeoutStr = strconv.FormatInt(s.Timeout().Milliseconds(), 10)
	}
	if err := writeLine(metaTimeout, timeoutStr); err != nil {
		return err
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	if _, err := bw.Write(s.Script()); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadStep reconstructs a Step from the format WriteStep produces. The
// script's timestamps are set via the loader path (SetLastModified/
// LoadScript), which does not disturb them the way SetScript would.
func ReadStep(r io.Reader) (*step.Step, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	meta := make(map[string]string)
	order := []string{metaType, metaLabel, metaVars, metaModified, metaExecuted, metaTimeout}
	for _, key := range order {
		if !scanner.Scan() {
			return nil, fmt.Errorf("persist: missing metadata line %q", key)
		}
		line := scanner.Text()
		prefixed := commentPrefix + key + ": "
		if !strings.HasPrefix(line, prefixed) {
			return nil, fmt.Errorf("persist: expected metadata line %q, got %q", prefixed, line)
		}
		meta[key] = strings.TrimPrefix(line, prefixed)
	}
	if scanner.Scan() && scanner.Text() != "" {
		return nil, fmt.Errorf("persist: expected blank line after metadata, got %q", scanner.Text())
	}

	var body strings.Builder
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	typ, err := parseType(meta[metaType])
	if err != nil {
		return nil, err
	}

	s := step.New(typ)
	s.SetLabel(meta[metaLabel])

	if meta[metaVars] != "" {
		parts := strings.Split(meta[metaVars], ", ")
		names := make([]variable.Name, 0, len(parts))
		for _, p := range parts {
			n, err := variable.NewName(p)
			if err != nil {
				return nil, fmt.Errorf("persist: variable name %q: %w", p, err)
			}
			names = append(names, n)
		}
		s.SetVariableNames(names)
	}

	modified, err := parseTimestamp(meta[metaModified])
	if err != nil {
		return nil, fmt.Errorf("persist: last modification: %w", err)
	}

	if meta[metaExecuted] != "" {
		executed, err := parseTimestamp(meta[metaExecuted])
		if err != nil {
			return nil, fmt.Errorf("persist: last execution: %w", err)
		}
		s.SetLastExecuted(executed)
	}

	if meta[metaTimeout] == timeoutNone {
		s.SetTimeout(step.NoTimeout)
	} else {
		ms, err := strconv.ParseInt(meta[metaTimeout], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("persist: timeout: %w", err)
		}
		s.SetTimeout(time.Duration(ms) * time.Millisecond)
	}

	script := strings.TrimSuffix(body.String(), "\n")
	s.LoadScript([]byte(script))
	s.SetLastModified(modified)

	return s, nil
}

func parseType(s string) (step.Type, error) {
	switch s {
	case "action":
		return step.Action, nil
	case "if":
		return step.If, nil
	case "elseif":
		return step.ElseIf, nil
	case "else":
		return step.Else, nil
	case "while":
		return step.While, nil
	case "try":
		return step.Try, nil
	case "catch":
		return step.Catch, nil
	case "end":
		return step.End, nil
	default:
		return 0, fmt.Errorf("persist: unknown step type %q", s)
	}
}

// stepFileName returns "step_NNN_<type>.lua" for step index idx. The
// extension is fixed by the format this package implements, independent of
// which embedded script engine actually runs the body.
func stepFileName(idx int, typ step.Type) string {
	return fmt.Sprintf("step_%03d_%s.lua", idx, typ.String())
}

// WriteSequence serializes sq as a directory under parentDir named after
// its escaped label, containing one step file per Step in order.
func WriteSequence(parentDir string, sq *sequence.Sequence) error {
	dir := filepath.Join(parentDir, EscapeLabel(sq.Label()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	steps := sq.Steps()
	for i, s := range steps {
		path := filepath.Join(dir, stepFileName(i, s.Type()))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		err = WriteStep(f, s)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

// ReadSequence reconstructs a Sequence from a directory produced by
// WriteSequence. The Sequence's label is the unescaped directory name.
func ReadSequence(dir string) (*sequence.Sequence, error) {
	label, err := UnescapeLabel(filepath.Base(dir))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	steps := make([]*step.Step, 0, len(names))
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		s, err := ReadStep(f)
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("persist: %s: %w", name, err)
		}
		if closeErr != nil {
			return nil, closeErr
		}
		steps = append(steps, s)
	}

	sq := sequence.New(label)
	sq.SetSteps(steps)
	return sq, nil
}
