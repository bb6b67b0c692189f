package host

import (
	"fmt"
	"os"
	"runtime/debug"
)

// EnableCrashOutput makes the runtime copy unrecoverable crash reports to
// path, where the next process finds them. The returned file must stay
// open for the life of the process.
func EnableCrashOutput(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open crash file: %w", err)
	}
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		f.Close()
		return nil, fmt.Errorf("set crash output: %w", err)
	}
	return f, nil
}
