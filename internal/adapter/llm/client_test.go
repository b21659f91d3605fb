package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestGenerateSQL_StructuredOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rf := req["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", rf["type"])

		w.Write([]byte(chatBody(`{"sql": "select 1", "assumptions": ["none"]}`)))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1", APIKey: "secret", Model: "m"}, testLogger())
	gen, err := c.GenerateSQL(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "select 1", gen.SQL)
	assert.Equal(t, []string{"none"}, gen.Assumptions)
}

func TestGenerateSQL_FallsBackToJSONObject(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		rf := req["response_format"].(map[string]any)

		if calls.Add(1) == 1 {
			assert.Equal(t, "json_schema", rf["type"])
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "model does not support response format json_schema"}`))
			return
		}

		assert.Equal(t, "json_object", rf["type"])
		system := req["messages"].([]any)[0].(map[string]any)["content"].(string)
		assert.Contains(t, system, "Return ONLY a valid JSON object")
		w.Write([]byte(chatBody(`{"sql": "select 2"}`)))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, testLogger())
	gen, err := c.GenerateSQL(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "select 2", gen.SQL)
}

func TestGenerateSQL_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(chatBody(`{"sql": "select 3"}`)))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m", MaxRetries: 5}, testLogger())
	gen, err := c.GenerateSQL(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "select 3", gen.SQL)
}

func TestGenerateSQL_NonTransientStatusIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "bad key"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, testLogger())
	_, err := c.GenerateSQL(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "401 must not be retried")
	assert.Contains(t, err.Error(), "401")
}

func TestGenerateSQL_RescuesJSONWrappedInProse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody("Here you go:\n```json\n{\"sql\": \"select 4\"}\n```")))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, testLogger())
	gen, err := c.GenerateSQL(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "select 4", gen.SQL)
}

func TestGenerateSQL_MissingSQLKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody(`{"answer": "forty-two"}`)))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "m"}, testLogger())
	_, err := c.GenerateSQL(context.Background(), "sys", "user")
	require.Error(t, err)
}

func TestEmbed_ReturnsOneVectorPerInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2]}, {"embedding": [0.3, 0.4]}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/v1", Model: "m", EmbedModel: "e"}, testLogger())
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])
}

func TestEmbed_WithoutModelConfigured(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused", Model: "m"}, testLogger())
	_, err := c.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
}
