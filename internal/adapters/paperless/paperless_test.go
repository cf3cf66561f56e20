package paperless

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient skips the retry transport so failure tests stay fast.
func testClient(serverURL string) *Client {
	return &Client{
		http:    http.DefaultClient,
		baseURL: serverURL,
		token:   "test-token",
		logger:  slog.New(slog.NewTextHandler(testWriter{}, nil)),
	}
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestGetTagIDByName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"next": null, "results": [{"id": 3, "name": "Steuer"}, {"id": 7, "name": "Pool"}]}`)
	}))
	defer server.Close()

	id, err := testClient(server.URL).GetTagIDByName(context.Background(), "Pool")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestGetTagIDByName_Paginated(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"next": null, "results": [{"id": 9, "name": "Pool"}]}`)
			return
		}
		fmt.Fprintf(w, `{"next": "%s/api/tags/?page=2", "results": [{"id": 1, "name": "Privat"}]}`, server.URL)
	}))
	defer server.Close()

	id, err := testClient(server.URL).GetTagIDByName(context.Background(), "Pool")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}

func TestGetTagIDByName_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"next": null, "results": []}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetTagIDByName(context.Background(), "Pool")
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.ErrorContains(t, err, `tag "Pool"`)
}

func TestGetTagIDByName_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetTagIDByName(context.Background(), "Pool")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestListDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("tags__id"))
		assert.Equal(t, "-created", r.URL.Query().Get("ordering"))
		assert.Equal(t, "false", r.URL.Query().Get("truncate_content"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"next": null, "results": [
			{"id": 101, "title": "Rechnung Pumpe", "created": "2026-08-10T09:00:00Z",
			 "correspondent": {"name": "Poolbau Müller"}, "document_type": 5,
			 "content": "Brutto 123,45 EUR"},
			{"id": 102, "title": null, "created": null,
			 "correspondent": null, "document_type": null, "content": ""}
		]}`)
	}))
	defer server.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs, err := testClient(server.URL).ListDocuments(context.Background(), 42, cutoff, 100)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, int64(101), first.ID)
	require.NotNil(t, first.Correspondent)
	assert.Equal(t, "Poolbau Müller", *first.Correspondent)
	require.NotNil(t, first.DocumentType)
	assert.Equal(t, "5", *first.DocumentType)
	assert.Equal(t, "Brutto 123,45 EUR", first.Content)

	second := docs[1]
	assert.Nil(t, second.Title)
	assert.Nil(t, second.Created)
	assert.Nil(t, second.Correspondent)
}

func TestListDocuments_StopsAtCutoff(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"next": "should-not-be-followed", "results": [
			{"id": 1, "created": "2026-08-10T09:00:00Z", "content": "a"},
			{"id": 2, "created": "2025-01-01T00:00:00Z", "content": "b"},
			{"id": 3, "created": "2026-08-01T00:00:00Z", "content": "c"}
		]}`)
	}))
	defer server.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs, err := testClient(server.URL).ListDocuments(context.Background(), 1, cutoff, 100)
	require.NoError(t, err)

	// Scan stops at the first document older than the cutoff.
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].ID)
	assert.Equal(t, 1, requests)
}

func TestListDocuments_UnparseableCreatedKeepsGoing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"next": null, "results": [
			{"id": 1, "created": "garbage", "content": "a"},
			{"id": 2, "created": "2026-08-01T00:00:00Z", "content": "b"}
		]}`)
	}))
	defer server.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs, err := testClient(server.URL).ListDocuments(context.Background(), 1, cutoff, 100)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestListDocuments_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).ListDocuments(context.Background(), 1, time.Time{}, 100)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2026-08-10T09:00:00Z", true},
		{"2026-08-10T09:00:00.123456+02:00", true},
		{"2026-08-10", true},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		_, err := ParseTimestamp(tt.in)
		if tt.ok {
			assert.NoError(t, err, tt.in)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page_size"))
		fmt.Fprint(w, `{"next": null, "results": []}`)
	}))
	defer server.Close()

	latency, err := testClient(server.URL).Probe(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, latency, time.Duration(0))
}
