package cli_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenloop/haven/internal/interfaces/cli"
)

func runCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := cli.NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// ─────────────────────────────────────────────────────────────────────────────
// Root command
// ─────────────────────────────────────────────────────────────────────────────

func TestRootCommand_Help(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "havenctl")
	assert.Contains(t, stdout, "incidents")
	assert.Contains(t, stdout, "migrate")
}

func TestRootCommand_UnknownSubcommand(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, "definitely-not-a-command")
	assert.Error(t, err)
}

func TestGetCLIContext_MissingContext(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCommand()
	_, err := cli.GetCLIContext(root)
	assert.Error(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestFormatTable_AlignsColumns(t *testing.T) {
	t.Parallel()

	out := cli.FormatTable(
		[]string{"ID", "STATUS"},
		[][]string{
			{"inc-1", "active"},
			{"incident-22", "resolved"},
		},
	)
	assert.Contains(t, out, "ID           STATUS")
	assert.Contains(t, out, "inc-1        active")
	assert.Contains(t, out, "incident-22  resolved")
}

func TestFormatTable_EmptyHeaders(t *testing.T) {
	t.Parallel()
	assert.Empty(t, cli.FormatTable(nil, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// Incidents commands against a stub server
// ─────────────────────────────────────────────────────────────────────────────

func TestIncidentsList_RendersTable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-op", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/oversight/incidents", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"incidents":[{"id":"inc-1","subject_id":"ana","status":"active","created_at":"2026-08-29T10:00:00Z","address":"12 Rue de Rivoli"}]}`))
	}))
	defer srv.Close()

	stdout, _, err := runCommand(t, "incidents", "list", "--server", srv.URL, "--token", "tok-op")
	require.NoError(t, err)
	assert.Contains(t, stdout, "inc-1")
	assert.Contains(t, stdout, "ana")
	assert.Contains(t, stdout, "12 Rue de Rivoli")
}

func TestIncidentsList_RejectsBadStatus(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, "incidents", "list", "--status", "exploded", "--token", "tok-op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestIncidentsTransition_SurfacesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"INC_003","message":"illegal transition"}`))
	}))
	defer srv.Close()

	_, _, err := runCommand(t, "incidents", "transition", "inc-1",
		"--target", "resolved", "--server", srv.URL, "--token", "tok-op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INC_003")
	assert.Contains(t, err.Error(), "illegal transition")
}

func TestIncidentsTransition_RejectsBadTarget(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, "incidents", "transition", "inc-1", "--target", "active", "--token", "tok-op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid target")
}

func TestIncidents_RequiresToken(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, "incidents", "list", "--token", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operator token")
}

func TestBroadcast_PostsMessage(t *testing.T) {
	t.Parallel()

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	stdout, _, err := runCommand(t, "incidents", "broadcast", "grp-1",
		"--message", "shelter in place", "--server", srv.URL, "--token", "tok-op")
	require.NoError(t, err)
	assert.Contains(t, stdout, "broadcast queued")
	assert.Contains(t, gotBody, "shelter in place")
}
