package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const siliconFlowBaseURL = "https://api.siliconflow.cn/v1"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIProvider talks to any OpenAI-compatible chat completion
// endpoint. SiliconFlow is the stock deployment.
type openAIProvider struct {
	name   string
	apiKey string
	model  string
	base   string
	client *http.Client
}

func newOpenAIProvider(name, base, apiKey, model string, timeoutS int) *openAIProvider {
	if timeoutS <= 0 {
		timeoutS = 30
	}
	return &openAIProvider{
		name:   name,
		apiKey: apiKey,
		model:  model,
		base:   base,
		client: &http.Client{Timeout: time.Duration(timeoutS) * time.Second},
	}
}

func (p *openAIProvider) Name() string { return p.name }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func (p *openAIProvider) Call(ctx context.Context, prompt string, input any) (string, error) {
	full, err := composeInput(prompt, input)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(chatRequest{
		Model:    p.model,
		Messages: []chatMessage{{Role: "user", Content: full}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.base+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp chatResponse
	if err := httpDo(p.client, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}
