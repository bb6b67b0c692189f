package engine

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/snipd/internal/ir"
)

// frameFile matches the file line of a goroutine trace frame:
// "\t/path/to/file.go:123 +0x1d", possibly followed by register values.
var frameFile = regexp.MustCompile(`^\t(.+?):(\d+)(?: .*)?$`)

type frame struct {
	fn   string
	file string
	line int
}

// ParseCrashOutput extracts the last crash from Go runtime crash output
// (what runtime/debug.SetCrashOutput writes). Returns nil when data holds
// no "panic:" or "fatal error:" line.
func ParseCrashOutput(data []byte, markers []string) *ir.FatalRecord {
	lines := strings.Split(string(data), "\n")

	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "panic: ") || strings.HasPrefix(l, "fatal error: ") {
			start = i
		}
	}
	if start < 0 {
		return nil
	}

	// A panic that turned fatal reports "fatal error" after the panic
	// line; the earlier panic line carries the useful message.
	for start > 0 && strings.HasPrefix(lines[start], "fatal error: ") &&
		strings.HasPrefix(lines[start-1], "panic: ") {
		start--
	}

	msg := strings.TrimPrefix(strings.TrimPrefix(lines[start], "panic: "), "fatal error: ")
	msg = strings.TrimSuffix(msg, " [recovered]")
	stack := strings.Join(lines[start:], "\n")

	rec := &ir.FatalRecord{
		Kind:    ir.FatalKindFatal,
		Message: strings.TrimSpace(msg),
		Stack:   stack,
	}
	if f, ok := pickFrame(parseFrames([]byte(stack)), markers); ok {
		rec.File, rec.Line = f.file, f.line
	}
	return rec
}

// PanicRecord describes a panic recovered by the host, with the stack
// captured by debug.Stack in the recovering goroutine.
func PanicRecord(v any, stack []byte, markers []string) *ir.FatalRecord {
	rec := &ir.FatalRecord{
		Kind:    ir.FatalKindPanic,
		Message: fmt.Sprint(v),
		Stack:   string(stack),
	}
	if f, ok := pickFrame(parseFrames(stack), markers); ok {
		rec.File, rec.Line = f.file, f.line
	}
	return rec
}

func parseFrames(stack []byte) []frame {
	var (
		frames []frame
		fn     string
	)
	sc := bufio.NewScanner(bytes.NewReader(stack))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if m := frameFile.FindStringSubmatch(line); m != nil && fn != "" {
			n, _ := strconv.Atoi(m[2])
			frames = append(frames, frame{fn: fn, file: m[1], line: n})
			fn = ""
			continue
		}
		if line != "" && !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, "goroutine ") {
			fn = funcName(line)
		}
	}
	return frames
}

// pickFrame prefers the first frame inside the execution machinery, then
// the first frame outside the runtime, then the first frame.
//
// A frame matched through its function name rather than its path reports
// the file as package path plus base name, the form a trimmed build
// prints, so the marker stays visible in the file.
func pickFrame(frames []frame, markers []string) (frame, bool) {
	if len(frames) == 0 {
		return frame{}, false
	}
	for _, f := range frames {
		file := strings.ToLower(f.file)
		fn := strings.ToLower(f.fn)
		for _, m := range markers {
			m = strings.ToLower(strings.TrimSpace(m))
			if m == "" {
				continue
			}
			if strings.Contains(file, m) {
				return f, true
			}
			if strings.Contains(fn, m) {
				f.file = funcPackage(f.fn) + "/" + path.Base(f.file)
				return f, true
			}
		}
	}
	for _, f := range frames {
		if !isRuntimeFrame(f) {
			return f, true
		}
	}
	return frames[0], true
}

// funcName strips the argument list and goroutine suffix from a trace
// function line.
func funcName(line string) string {
	line = strings.TrimPrefix(line, "created by ")
	line, _, _ = strings.Cut(line, " in goroutine ")
	if strings.HasSuffix(line, ")") {
		if i := strings.LastIndex(line, "("); i > 0 {
			line = line[:i]
		}
	}
	return line
}

func isRuntimeFrame(f frame) bool {
	return strings.HasPrefix(f.fn, "runtime.") || strings.HasPrefix(f.fn, "runtime/debug.") ||
		f.fn == "panic"
}

// funcPackage returns the import path part of a qualified function name,
// e.g. "github.com/a/b/pkg" for "github.com/a/b/pkg.(*T).M".
func funcPackage(fn string) string {
	slash := strings.LastIndex(fn, "/")
	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return fn
	}
	return fn[:slash+1+dot]
}
