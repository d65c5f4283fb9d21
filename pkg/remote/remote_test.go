package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDeployableUnit(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"supabase/functions/hello/index.ts", true},
		{"supabase/functions/hello", true},
		{"./supabase/functions/hello", true},
		{"supabase/functions/", false},
		{"supabase/migrations/001_init.sql", false},
		{"src/app.ts", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDeployableUnit(tt.path))
		})
	}
}

func TestFunctionName(t *testing.T) {
	tests := []struct {
		path  string
		isDir bool
		want  string
	}{
		{"supabase/functions/hello", true, "hello"},
		{"supabase/functions/hello/", true, "hello"},
		{"supabase/functions/hello/index.ts", false, "hello"},
		{"supabase/functions/hello/lib/util.ts", false, "lib"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, FunctionName(tt.path, tt.isDir))
		})
	}
}

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]string
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var recorded []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		recorded = append(recorded, rec)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &recorded
}

func TestHTTPClientExecuteSQL(t *testing.T) {
	srv, recorded := newRecordingServer(t, http.StatusOK)
	c := NewHTTPClient(srv.URL+"/", "secret-key")

	require.NoError(t, c.ExecuteSQL(context.Background(), "proj-1", "CREATE TABLE a (id int);"))

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v1/projects/proj-1/database/query", req.path)
	assert.Equal(t, "Bearer secret-key", req.auth)
	assert.Equal(t, "CREATE TABLE a (id int);", req.body["query"])
}

func TestHTTPClientDeployFunction(t *testing.T) {
	srv, recorded := newRecordingServer(t, http.StatusCreated)
	c := NewHTTPClient(srv.URL, "k")

	require.NoError(t, c.DeployFunction(context.Background(), "proj-1", "hello", "serve()"))

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	assert.Equal(t, "/v1/projects/proj-1/functions/hello/deploy", req.path)
	assert.Equal(t, "serve()", req.body["body"])
}

func TestHTTPClientSnapshotBranch(t *testing.T) {
	srv, recorded := newRecordingServer(t, http.StatusOK)
	c := NewHTTPClient(srv.URL, "k")

	require.NoError(t, c.SnapshotBranch(context.Background(), "proj-1", "branch-9", "cafe1234"))

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	assert.Equal(t, "/v1/projects/proj-1/branches/branch-9/snapshots", req.path)
	assert.Equal(t, "cafe1234", req.body["version"])
}

func TestHTTPClientDeleteFunction(t *testing.T) {
	srv, recorded := newRecordingServer(t, http.StatusNoContent)
	c := NewHTTPClient(srv.URL, "k")

	require.NoError(t, c.DeleteFunction(context.Background(), "proj-1", "hello"))

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/v1/projects/proj-1/functions/hello", req.path)
}

func TestHTTPClientDeleteTolerates404(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusNotFound)
	c := NewHTTPClient(srv.URL, "k")
	assert.NoError(t, c.DeleteFunction(context.Background(), "proj-1", "gone"))
}

func TestHTTPClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, "k")

	err := c.ExecuteSQL(context.Background(), "proj-1", "SELECT 1;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")

	err = c.DeleteFunction(context.Background(), "proj-1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
