package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("tok", WithBaseURL(srv.URL))
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

func respondJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestPost(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/channels/123/messages", r.URL.Path)
		assert.Equal(t, "Bot tok", r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		assert.Equal(t, "hello", body["content"])
		mentions := body["allowed_mentions"].(map[string]any)
		assert.Empty(t, mentions["parse"])

		respondJSON(w, http.StatusOK, `{"id":"m1"}`)
	})

	id, err := client.Post(context.Background(), "123", "hello", false)
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
}

func TestPostAllowsUserMentions(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		mentions := body["allowed_mentions"].(map[string]any)
		assert.Equal(t, []any{"users"}, mentions["parse"])
		respondJSON(w, http.StatusOK, `{"id":"m1"}`)
	})

	_, err := client.Post(context.Background(), "123", "<@42> done", true)
	require.NoError(t, err)
}

func TestPostClipsContent(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		content := body["content"].(string)
		assert.LessOrEqual(t, utf8.RuneCountInString(content), MaxContentLen)
		respondJSON(w, http.StatusOK, `{"id":"m1"}`)
	})

	_, err := client.Post(context.Background(), "123", strings.Repeat("a", 3000), false)
	require.NoError(t, err)
}

func TestPostAPIError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusForbidden, `{"message":"Missing Access"}`)
	})

	_, err := client.Post(context.Background(), "123", "hello", false)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Missing Access")
	assert.True(t, IsPermissionError(err))
	assert.False(t, IsWrongEndpoint(err))
	assert.False(t, IsRateLimited(err))
}

func TestEdit(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/channels/123/messages/m1", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "updated", body["content"])
		respondJSON(w, http.StatusOK, `{"id":"m1"}`)
	})

	require.NoError(t, client.Edit(context.Background(), "123", "m1", "updated"))
}

func TestResolveDmChannel(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/@me/channels", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "u9", body["recipient_id"])
		respondJSON(w, http.StatusOK, `{"id":"dm1"}`)
	})

	id, err := client.ResolveDmChannel(context.Background(), "u9")
	require.NoError(t, err)
	assert.Equal(t, "dm1", id)
}

func TestCreateThreadPrimaryRoute(t *testing.T) {
	var paths []string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/channels/123/messages":
			respondJSON(w, http.StatusOK, `{"id":"m7"}`)
		case "/channels/123/messages/m7/threads":
			body := decodeBody(t, r)
			assert.Equal(t, "build thread", body["name"])
			assert.Equal(t, float64(1440), body["auto_archive_duration"])
			respondJSON(w, http.StatusCreated, `{"id":"t1"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			respondJSON(w, http.StatusNotFound, `{}`)
		}
	})

	id, err := client.CreateThread(context.Background(), "123", "build thread", "starting", 1440)
	require.NoError(t, err)
	assert.Equal(t, "t1", id)
	assert.Equal(t, []string{"/channels/123/messages", "/channels/123/messages/m7/threads"}, paths)
}

func TestCreateThreadFallsBackToBareRoute(t *testing.T) {
	var paths []string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/channels/123/messages":
			respondJSON(w, http.StatusOK, `{"id":"m7"}`)
		case "/channels/123/messages/m7/threads":
			respondJSON(w, http.StatusNotFound, `{"message":"Unknown Message"}`)
		case "/channels/123/threads":
			body := decodeBody(t, r)
			assert.Equal(t, float64(publicThread), body["type"])
			respondJSON(w, http.StatusCreated, `{"id":"t2"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			respondJSON(w, http.StatusNotFound, `{}`)
		}
	})

	id, err := client.CreateThread(context.Background(), "123", "build thread", "starting", 1440)
	require.NoError(t, err)
	assert.Equal(t, "t2", id)
	require.Len(t, paths, 3)
}

func TestCreateThreadPermissionErrorDoesNotFallBack(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		respondJSON(w, http.StatusForbidden, `{"message":"Missing Access"}`)
	})

	_, err := client.CreateThread(context.Background(), "123", "build thread", "starting", 1440)
	require.Error(t, err)
	assert.True(t, IsPermissionError(err))
	assert.Equal(t, 1, calls)
}

func TestCreateThreadClipsName(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels/123/messages":
			respondJSON(w, http.StatusOK, `{"id":"m7"}`)
		default:
			body := decodeBody(t, r)
			assert.LessOrEqual(t, utf8.RuneCountInString(body["name"].(string)), MaxThreadNameLen)
			respondJSON(w, http.StatusCreated, `{"id":"t1"}`)
		}
	})

	_, err := client.CreateThread(context.Background(), "123", strings.Repeat("n", 250), "starting", 1440)
	require.NoError(t, err)
}
