package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsecurity/go-cs-lib/cstest"

	"github.com/crowdsecurity/sqlitrace/pkg/report"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newCliRoot().NewCommand()

	out := bytes.Buffer{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func TestAnalyzeJSON(t *testing.T) {
	out, err := execute(t, "analyze", "testdata/capture.csv", "-o", "json")
	require.NoError(t, err)

	var got report.View
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, report.View{
		AttackerID:   "192.168.1.66",
		AttemptCount: 2,
		FirstPayload: "GET /item.php?id=1 UNION SELECT user,pass FROM users HTTP/1.1",
		LastPayload:  "GET /login.php?user=admin' OR '1'='1 HTTP/1.1",
	}, got)
}

func TestAnalyzeHuman(t *testing.T) {
	out, err := execute(t, "analyze", "testdata/capture.csv", "--color", "no")
	require.NoError(t, err)

	assert.Contains(t, out, "SQL injection campaign")
	assert.Contains(t, out, "192.168.1.66")
}

func TestAnalyzeExitCode(t *testing.T) {
	_, err := execute(t, "analyze", "testdata/capture.csv", "-o", "raw", "--exit-code")

	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.code)
}

func TestAnalyzeWithConfig(t *testing.T) {
	// only the timing family is enabled, nothing matches
	out, err := execute(t, "-c", "testdata/timing_only.yaml", "analyze", "testdata/capture.csv", "--exit-code")
	require.NoError(t, err)

	assert.Equal(t, `attacker_id=NULL
attempt_count=0
first_payload=NULL
last_payload=NULL
formatted_symbol_count=0
`, out)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectedErr string
	}{
		{
			name:        "missing file",
			args:        []string{"analyze", "testdata/nope.csv"},
			expectedErr: "unable to open testdata/nope.csv",
		},
		{
			name:        "stdin without format",
			args:        []string{"analyze", "-"},
			expectedErr: "a format is required when reading from stdin",
		},
		{
			name:        "bad output format",
			args:        []string{"analyze", "testdata/capture.csv", "-o", "yaml"},
			expectedErr: "output format 'yaml' unknown",
		},
		{
			name:        "bad color",
			args:        []string{"analyze", "testdata/capture.csv", "--color", "maybe"},
			expectedErr: "output color 'maybe' unknown",
		},
		{
			name:        "bad config",
			args:        []string{"-c", "testdata/nope.yaml", "analyze", "testdata/capture.csv"},
			expectedErr: "failed to read config file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			cstest.RequireErrorContains(t, err, tc.expectedErr)
		})
	}
}

func TestExplain(t *testing.T) {
	out, err := execute(t, "explain", "-o", "raw", "admin' OR '1'='1", "GET /index.html", "1 AND sleep(1) --")
	require.NoError(t, err)

	assert.Equal(t, "tautology\tadmin' OR '1'='1\n\tGET /index.html\ntiming\t1 AND sleep(1) --\n", out)

	out, err = execute(t, "explain", "--color", "no", "GET /index.html")
	require.NoError(t, err)
	assert.Equal(t, "no match GET /index.html\n", out)

	out, err = execute(t, "explain", "-o", "json", "' OR '1'='1' UNION SELECT * FROM users --")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"payload": "' OR '1'='1' UNION SELECT * FROM users --", "families": ["command", "tautology"]}]`, out)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Signature families: command, tautology, comment, timing")
}
