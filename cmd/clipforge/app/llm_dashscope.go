package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const dashScopeBaseURL = "https://dashscope.aliyuncs.com/api/v1"

// dashScopeProvider talks to the DashScope text-generation endpoint
// with result_format=message.
type dashScopeProvider struct {
	apiKey string
	model  string
	base   string
	client *http.Client
}

func newDashScopeProvider(apiKey, model string, timeoutS int) *dashScopeProvider {
	if timeoutS <= 0 {
		timeoutS = 30
	}
	return &dashScopeProvider{
		apiKey: apiKey,
		model:  model,
		base:   dashScopeBaseURL,
		client: &http.Client{Timeout: time.Duration(timeoutS) * time.Second},
	}
}

func (p *dashScopeProvider) Name() string { return providerDashScope }

type dashScopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []chatMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string `json:"result_format"`
	} `json:"parameters"`
}

type dashScopeResponse struct {
	Output struct {
		Choices []struct {
			Message      chatMessage `json:"message"`
			FinishReason string      `json:"finish_reason"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *dashScopeProvider) Call(ctx context.Context, prompt string, input any) (string, error) {
	full, err := composeInput(prompt, input)
	if err != nil {
		return "", err
	}
	var reqBody dashScopeRequest
	reqBody.Model = p.model
	reqBody.Input.Messages = []chatMessage{{Role: "user", Content: full}}
	reqBody.Parameters.ResultFormat = "message"

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	url := p.base + "/services/aigc/text-generation/generation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var resp dashScopeResponse
	if err := httpDo(p.client, req, &resp); err != nil {
		return "", err
	}
	if resp.Code != "" {
		return "", fmt.Errorf("dashscope error %s: %s", resp.Code, resp.Message)
	}
	if len(resp.Output.Choices) == 0 {
		return "", fmt.Errorf("dashscope returned no choices")
	}
	// Empty content on a successful call is reported as empty output,
	// not as an error.
	return resp.Output.Choices[0].Message.Content, nil
}
