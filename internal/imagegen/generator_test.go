package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGeneratorGenerate(t *testing.T) {
	var gotReq imageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"data": [{"url": "https://tmp.example.com/img.png"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("test-key", "dall-e-3", "1024x1024").WithBaseURL(srv.URL)
	url, err := g.Generate(context.Background(), "a plated dish")
	require.NoError(t, err)

	assert.Equal(t, "https://tmp.example.com/img.png", url)
	assert.Equal(t, "dall-e-3", gotReq.Model)
	assert.Equal(t, "a plated dish", gotReq.Prompt)
	assert.Equal(t, 1, gotReq.N)
	assert.Equal(t, "1024x1024", gotReq.Size)
}

func TestOpenAIGeneratorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "content policy violation", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("k", "dall-e-3", "1024x1024").WithBaseURL(srv.URL)
	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy violation")
}

func TestOpenAIGeneratorEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("k", "dall-e-3", "1024x1024").WithBaseURL(srv.URL)
	_, err := g.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image URL")
}
