package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), buf.String())
	return resp
}

func TestOutputFormatter_Success(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Success(map[string]int{"applied": 3}))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, map[string]any{"applied": float64(3)}, resp.Data)
		assert.Nil(t, resp.Error)
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Success("3 definition(s) valid"))
		assert.Equal(t, "3 definition(s) valid\n", buf.String())
	})
}

func TestOutputFormatter_Error(t *testing.T) {
	details := map[string]string{"file": "brand.cue", "line": "4"}

	tests := []struct {
		name    string
		format  string
		verbose bool
		details any
		want    []string
		notWant []string
	}{
		{"text", "text", false, nil, []string{"Error [E_INVALID]: invalid definition"}, []string{"Details:"}},
		{"text details hidden", "text", false, details, nil, []string{"Details:"}},
		{"text verbose details", "text", true, details, []string{"Details:", "brand.cue"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Error("E_INVALID", "invalid definition", tt.details))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Error("E_INVALID", "invalid definition", details))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "E_INVALID", resp.Error.Code)
		assert.Equal(t, "invalid definition", resp.Error.Message)
		assert.NotNil(t, resp.Error.Details)
		assert.Nil(t, resp.Data)
	})
}

func TestOutputFormatter_PrintText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Print([]string{"a", "b"}, func(w io.Writer) {
		fmt.Fprintln(w, "two snippets")
	})
	require.NoError(t, err)
	assert.Equal(t, "two snippets\n", buf.String())
}

func TestOutputFormatter_PrintJSONIgnoresText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Print(map[string]string{"body": "<p>x</p>"}, func(w io.Writer) {
		fmt.Fprintln(w, "not used")
	})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "not used")
	assert.Contains(t, buf.String(), "<p>x</p>", "HTML must not be escaped")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		verbose   bool
		errWriter bool
		wantOut   string
		wantErr   string
	}{
		{"quiet", "text", false, false, "", ""},
		{"text to writer", "text", true, false, "loaded 2\n", ""},
		{"json to err writer", "json", true, true, "", "loaded 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: out, Verbose: tt.verbose}
			if tt.errWriter {
				f.ErrWriter = errOut
			}
			f.VerboseLog("loaded %d", 2)
			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errOut.String())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit_error", NewExitError(ExitCommandError, "bad args"), ExitCommandError},
		{"wrapped", fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "invalid", errors.New("x"))), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitCommandError, "not found", errors.New("snippet abc"))
	assert.Equal(t, "not found: snippet abc", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "snippet abc")
	assert.Equal(t, "bad args", NewExitError(ExitCommandError, "bad args").Error())
}
