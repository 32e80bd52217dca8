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

	"github.com/roach88/crescent/internal/domain"
	"github.com/roach88/crescent/internal/gateway"
)

type greeting struct {
	Name string `json:"name"`
}

func (g greeting) RenderText(w io.Writer) { fmt.Fprintf(w, "salaam, %s\n", g.Name) }

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(greeting{Name: "Noor"}))

	var resp struct {
		Status string   `json:"status"`
		Data   greeting `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Noor", resp.Data.Name)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]string{"field": "points"}
	require.NoError(t, formatter.Error("LIMIT_EXCEEDED", "daily cap reached", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "LIMIT_EXCEEDED", resp.Error.Code)
	assert.Equal(t, "daily cap reached", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextUsesRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(greeting{Name: "Yusuf"}))
	assert.Equal(t, "salaam, Yusuf\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain value"))
	assert.Equal(t, "plain value\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("NOT_FOUND", "no profile \"Baba\"", []string{"Mama", "Yusuf"}))
			assert.Contains(t, buf.String(), "Error [NOT_FOUND]: no profile \"Baba\"")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("queued %s", "c-1")
	assert.Empty(t, out.String())
	assert.Equal(t, "queued c-1\n", diag.String())

	quiet := &OutputFormatter{Format: "text", Writer: out}
	quiet.VerboseLog("ignored")
	assert.Empty(t, out.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open store", errors.New("disk full")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, "outer: open store: disk full", wrapped.Error())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", rejected(domain.Invalid(domain.ErrCodeLimitExceeded, "points", "too many")), "LIMIT_EXCEEDED"},
		{"gateway", WrapExitError(ExitFailure, "sync failed", gateway.NewError(gateway.ErrCodeUnavailable, "insert rewards", nil)), "UNAVAILABLE"},
		{"command", NewExitError(ExitCommandError, "bad flag"), "COMMAND_ERROR"},
		{"other", errors.New("boom"), "FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
