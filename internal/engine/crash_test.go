package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snipd/internal/ir"
)

const sampleFatalOutput = `unexpected fault address 0x0
fatal error: fault
[signal SIGSEGV: segmentation violation code=0x80 addr=0x0 pc=0x4a6d2c]

goroutine 34 [running]:
runtime.throw({0x8fa0c1?, 0x0?})
	/usr/local/go/src/runtime/panic.go:1067 +0x48 fp=0xc0001a7b48 sp=0xc0001a7b18 pc=0x43c2e8
github.com/traefik/yaegi/interp.call.func9(0xc0002b2000)
	/go/pkg/mod/github.com/traefik/yaegi@v0.16.1/interp/run.go:1350 +0x8ec
github.com/roach88/snipd/internal/interp.(*Session).eval(0xc000120000, {0x9c2f40, 0xc00011a000})
	/build/internal/interp/session.go:230 +0x1b2
`

const samplePanicOutput = `panic: assignment to entry in nil map [recovered]
	panic: assignment to entry in nil map

goroutine 1 [running]:
main.main()
	/app/main.go:12 +0x1d
`

func TestParseCrashOutput_Fatal(t *testing.T) {
	rec := ParseCrashOutput([]byte(sampleFatalOutput), DefaultCrashMarkers)
	require.NotNil(t, rec)

	assert.Equal(t, ir.FatalKindFatal, rec.Kind)
	assert.Equal(t, "fault", rec.Message)
	assert.Equal(t, "/go/pkg/mod/github.com/traefik/yaegi@v0.16.1/interp/run.go", rec.File)
	assert.Equal(t, 1350, rec.Line)
	assert.Contains(t, rec.Stack, "goroutine 34")
}

func TestParseCrashOutput_Panic(t *testing.T) {
	rec := ParseCrashOutput([]byte(samplePanicOutput), DefaultCrashMarkers)
	require.NotNil(t, rec)

	assert.True(t, rec.IsFatal())
	assert.Equal(t, "assignment to entry in nil map", rec.Message)
	assert.Equal(t, "/app/main.go", rec.File)
	assert.Equal(t, 12, rec.Line)
}

func TestParseCrashOutput_Empty(t *testing.T) {
	assert.Nil(t, ParseCrashOutput(nil, DefaultCrashMarkers))
	assert.Nil(t, ParseCrashOutput([]byte("all good\n"), DefaultCrashMarkers))
}

func TestPanicRecord_MatchesFunctionName(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/roach88/snipd/internal/host.(*Server).recoverer.func1()
	/src/internal/host/middleware.go:40 +0x65
panic({0x7d2a40?, 0xc000012345?})
	/usr/local/go/src/runtime/panic.go:785 +0x132
github.com/roach88/snipd/internal/interp.(*Session).CallAction(0xc0000a2000)
	/src/x/session.go:266 +0x8d
`)
	rec := PanicRecord("boom", stack, DefaultCrashMarkers)

	assert.Equal(t, ir.FatalKindPanic, rec.Kind)
	assert.Equal(t, "boom", rec.Message)
	assert.Equal(t, "github.com/roach88/snipd/internal/interp/session.go", rec.File)
	assert.Equal(t, 266, rec.Line)
}

func TestPanicRecord_FallsBackToFirstNonRuntimeFrame(t *testing.T) {
	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
main.handler()
	/app/handler.go:9 +0x10
`)
	rec := PanicRecord("nope", stack, DefaultCrashMarkers)
	assert.Equal(t, "/app/handler.go", rec.File)
	assert.Equal(t, 9, rec.Line)
}
