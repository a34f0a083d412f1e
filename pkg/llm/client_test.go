package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ks-chat-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamingServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprint(w, line)
			flusher.Flush()
		}
	}))
}

func TestStreamGenerateReadsChunks(t *testing.T) {
	server := newStreamingServer(t, []string{
		"data: {\"choices\":[{\"delta\":{\"content\":\"he\"}}]}\n",
		"\n",
		": comment line ignored\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n",
		"\n",
		"data: [DONE]\n",
	})
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "test-model"})
	stream, err := client.StreamGenerate(context.Background(), "hi")
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "he", chunk.Text)

	chunk, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "llo", chunk.Text)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)

	// 流结束后继续读取仍然是 EOF
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamGenerateSkipsMalformedLines(t *testing.T) {
	server := newStreamingServer(t, []string{
		"data: {not valid json}\n",
		"data: {\"choices\":[]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n",
		"data: [DONE]\n",
	})
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "test-model"})
	stream, err := client.StreamGenerate(context.Background(), "hi")
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ok", chunk.Text)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamGenerateNon200IsSetupError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL, Model: "test-model"})
	_, err := client.StreamGenerate(context.Background(), "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}

func TestStreamGenerateConnectionFailure(t *testing.T) {
	client := NewClient(config.LLMConfig{BaseURL: "http://127.0.0.1:1", Model: "test-model"})
	_, err := client.StreamGenerate(context.Background(), "hi")
	require.Error(t, err)
}
