package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/dl-client/internal/domain"
	"github.com/yourusername/dl-client/internal/testutil"
)

func newTestClient(t *testing.T, opts testutil.BackendOptions) (*JobAPIClient, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend(opts, nil)
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)

	client := NewJobAPIClient(&domain.ServerConfig{BaseURL: server.URL + "/"}, nil, nil)
	return client, backend
}

func TestJobAPIClient_CreateJob(t *testing.T) {
	client, backend := newTestClient(t, testutil.BackendOptions{})

	handle, err := client.CreateJob(context.Background(), "https://example.com/watch?v=a b&list=1")
	require.NoError(t, err)
	assert.Equal(t, "1", handle.ID)

	job, ok := backend.Job("1")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/watch?v=a b&list=1", job.URL)
	assert.Equal(t, []string{"POST /download/"}, backend.Requests())
}

func TestJobAPIClient_CreateJobStringID(t *testing.T) {
	client, backend := newTestClient(t, testutil.BackendOptions{UUIDIDs: true})

	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Len(t, handle.ID, 36)

	_, ok := backend.Job(handle.ID)
	assert.True(t, ok)
}

func TestJobAPIClient_CreateJobFailures(t *testing.T) {
	tests := []struct {
		name  string
		fault testutil.Fault
		err   error
	}{
		{"server error", testutil.Fault{Code: http.StatusInternalServerError, Body: `{"detail":"DB failed"}`}, domain.ErrTransport},
		{"not json", testutil.Fault{Code: http.StatusOK, Body: `<html>`}, domain.ErrMalformedResponse},
		{"missing id", testutil.Fault{Code: http.StatusOK, Body: `{}`}, domain.ErrMalformedResponse},
		{"null id", testutil.Fault{Code: http.StatusOK, Body: `{"id":null}`}, domain.ErrMalformedResponse},
		{"bool id", testutil.Fault{Code: http.StatusOK, Body: `{"id":true}`}, domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, backend := newTestClient(t, testutil.BackendOptions{})
			backend.SetFault(testutil.OpCreate, tt.fault)

			_, err := client.CreateJob(context.Background(), "https://example.com/a")
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestJobAPIClient_ServerErrorCarriesBody(t *testing.T) {
	client, backend := newTestClient(t, testutil.BackendOptions{})
	backend.SetFault(testutil.OpCreate, testutil.Fault{Code: http.StatusInternalServerError, Body: `{"detail":"DB failed"}`})

	_, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "DB failed")
}

func TestJobAPIClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	client := NewJobAPIClient(&domain.ServerConfig{BaseURL: base}, nil, nil)
	_, err := client.CreateJob(context.Background(), "https://example.com/a")

	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, "TransportError", domain.ErrorKind(err))
}

func TestJobAPIClient_GetStatus(t *testing.T) {
	client, backend := newTestClient(t, testutil.BackendOptions{
		Script: []testutil.Step{
			{Status: "IN_PROGRESS", Progress: 12.5},
			{Status: "POSTPROCESSING", Progress: 100},
			{Status: "FINISHED", Progress: 100},
		},
	})

	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	report, err := client.GetStatus(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TagInProgress, report.Status)
	assert.Equal(t, 12.5, report.Progress)

	report, err = client.GetStatus(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TagPostprocessing, report.Status)

	report, err = client.GetStatus(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TagFinished, report.Status)

	job, _ := backend.Job(handle.ID)
	assert.Equal(t, 3, job.Polls)
}

func TestJobAPIClient_GetStatusUnknownTagIsPassedThrough(t *testing.T) {
	client, _ := newTestClient(t, testutil.BackendOptions{
		Script: []testutil.Step{{Status: "DOWNLOADED", Progress: 100}},
	})

	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	report, err := client.GetStatus(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTag("DOWNLOADED"), report.Status)
	assert.False(t, report.Status.Known())
}

func TestJobAPIClient_GetStatusEmptyTag(t *testing.T) {
	client, backend := newTestClient(t, testutil.BackendOptions{})
	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	backend.SetFault(testutil.OpStatus, testutil.Fault{Code: http.StatusOK, Body: `{"status":"","progress":7}`})
	report, err := client.GetStatus(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTag(""), report.Status)
	assert.False(t, report.Status.Known())
	assert.Equal(t, 7.0, report.Progress)
}

func TestJobAPIClient_GetStatusFailures(t *testing.T) {
	tests := []struct {
		name  string
		fault testutil.Fault
		err   error
	}{
		{"not json", testutil.Fault{Code: http.StatusOK, Body: `IN_PROGRESS`}, domain.ErrMalformedResponse},
		{"missing status", testutil.Fault{Code: http.StatusOK, Body: `{"progress": 3}`}, domain.ErrMalformedResponse},
		{"null status", testutil.Fault{Code: http.StatusOK, Body: `{"status": null, "progress": 3}`}, domain.ErrMalformedResponse},
		{"progress not a number", testutil.Fault{Code: http.StatusOK, Body: `{"status":"IN_PROGRESS","progress":"3%"}`}, domain.ErrMalformedResponse},
		{"bad gateway", testutil.Fault{Code: http.StatusBadGateway}, domain.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, backend := newTestClient(t, testutil.BackendOptions{})
			handle, err := client.CreateJob(context.Background(), "https://example.com/a")
			require.NoError(t, err)

			backend.SetFault(testutil.OpStatus, tt.fault)
			_, err = client.GetStatus(context.Background(), handle.ID)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestJobAPIClient_UnknownJob(t *testing.T) {
	client, _ := newTestClient(t, testutil.BackendOptions{})

	_, err := client.GetStatus(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobAPIClient_FetchArtifact(t *testing.T) {
	client, _ := newTestClient(t, testutil.BackendOptions{
		Artifact:    []byte("binary payload"),
		Disposition: `attachment; filename="clip.mp4"`,
	})

	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	result, err := client.FetchArtifact(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("binary payload"), result.Data)
	assert.Equal(t, `attachment; filename="clip.mp4"`, result.Disposition)
}

func TestJobAPIClient_FetchArtifactWithoutDisposition(t *testing.T) {
	client, _ := newTestClient(t, testutil.BackendOptions{Artifact: []byte("x")})

	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	result, err := client.FetchArtifact(context.Background(), handle.ID)
	require.NoError(t, err)
	assert.Empty(t, result.Disposition)
	assert.Equal(t, []byte("x"), result.Data)
}

func TestJobAPIClient_DeleteJob(t *testing.T) {
	client, backend := newTestClient(t, testutil.BackendOptions{})

	handle, err := client.CreateJob(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	require.NoError(t, client.DeleteJob(context.Background(), handle.ID))
	job, ok := backend.Job(handle.ID)
	require.True(t, ok)
	assert.True(t, job.Deleted)

	// A second delete finds nothing
	err = client.DeleteJob(context.Background(), handle.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	assert.Equal(t, []string{
		"POST /download/",
		"DELETE /download/1",
		"DELETE /download/1",
	}, backend.Requests())
}

func TestJobAPIClient_PathsAreEscaped(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		w.Write([]byte(`{"status":"IN_PROGRESS","progress":0}`))
	}))
	defer server.Close()

	client := NewJobAPIClient(&domain.ServerConfig{BaseURL: server.URL}, nil, nil)
	_, err := client.GetStatus(context.Background(), "a/b")
	require.NoError(t, err)

	assert.Equal(t, []string{"/download/a%2Fb/status"}, paths)
}

func TestJobAPIClient_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewJobAPIClient(&domain.ServerConfig{BaseURL: server.URL, RequestTimeout: 20 * time.Millisecond}, nil, nil)
	_, err := client.GetStatus(context.Background(), "1")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestJobAPIClient_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, testutil.BackendOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CreateJob(ctx, "https://example.com/a")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
