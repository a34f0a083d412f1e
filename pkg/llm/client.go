// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ks-chat-go/internal/config"
)

// Chunk 是提供方流式返回的一个增量分块。不保证粒度，可能小于一个词。
type Chunk struct {
	Text string
}

// Stream 把提供方的流式响应抽象为"取下一个分块或结束"的单一接口。
// Recv 在流正常结束时返回 io.EOF。
type Stream interface {
	Recv() (*Chunk, error)
	Close() error
}

// Client defines the interface for an LLM client.
type Client interface {
	// StreamGenerate 以固定模型对单轮 prompt 发起流式生成。
	// 无法拿到可流式读取的响应时直接返回错误，不产生任何分块。
	StreamGenerate(ctx context.Context, prompt string) (Stream, error)
}

type providerClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the config.
func NewClient(cfg config.LLMConfig) Client {
	return &providerClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamGenerate 调用提供方的 chat/completions 接口并返回可逐块读取的流。
func (c *providerClient) StreamGenerate(ctx context.Context, prompt string) (Stream, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   true,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	return &sseStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

// sseStream 逐行解析提供方的 text/event-stream 响应。
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// Recv 返回下一个带文本的分块，流结束时返回 io.EOF。
// 无法解析的行直接跳过，不中断整个流。
func (s *sseStream) Recv() (*Chunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.done = true
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			s.done = true
			return nil, io.EOF
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		return &Chunk{Text: chunk.Choices[0].Delta.Content}, nil
	}
}

// Close 关闭底层响应体。
func (s *sseStream) Close() error {
	return s.body.Close()
}
