package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Provider is one LLM backend. Call sends a single user turn and
// returns the raw text response. A successful request whose output is
// empty returns ("", nil); callers decide how to treat that.
type Provider interface {
	Name() string
	Call(ctx context.Context, prompt string, input any) (string, error)
}

// composeInput appends the serialized input to the prompt. Strings are
// passed verbatim; anything else is JSON with indentation so the model
// sees the same structure we parse back.
func composeInput(prompt string, input any) (string, error) {
	if input == nil {
		return prompt, nil
	}
	var payload string
	switch v := input.(type) {
	case string:
		payload = v
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal llm input: %w", err)
		}
		payload = string(raw)
	}
	return prompt + "\n\n输入内容：\n" + payload, nil
}

// CallWithRetry calls p with exponential backoff. Authentication and
// parameter errors are not retried.
func CallWithRetry(ctx context.Context, p Provider, prompt string, input any, maxRetries int) (string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		start := time.Now()
		resp, err := p.Call(ctx, prompt, input)
		if err == nil {
			llmCalls.WithLabelValues(p.Name(), "ok").Inc()
			llmLatency.WithLabelValues(p.Name(), "ok").Observe(float64(time.Since(start).Nanoseconds()) * 1e-6)
			return resp, nil
		}
		llmCalls.WithLabelValues(p.Name(), "error").Inc()
		var ae *authError
		if errors.As(err, &ae) {
			return "", err
		}
		lastErr = err
		if attempt == maxRetries-1 {
			break
		}
		wait := time.Duration(1<<uint(attempt)) * time.Second
		slog.Warn("llm call failed, retrying", "provider", p.Name(),
			"attempt", attempt+1, "wait", wait.String(), "err", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("llm call failed after %d attempts: %w", maxRetries, lastErr)
}

// newProvider builds the provider selected by the settings.
func newProvider(st Settings) (Provider, error) {
	switch st.APIProvider {
	case providerDashScope:
		if st.DashScopeAPIKey == "" {
			return nil, fmt.Errorf("dashscope api key not configured")
		}
		return newDashScopeProvider(st.DashScopeAPIKey, st.ModelName, st.TimeoutSeconds), nil
	case providerSiliconFlow:
		if st.SiliconFlowAPIKey == "" {
			return nil, fmt.Errorf("siliconflow api key not configured")
		}
		return newOpenAIProvider(providerSiliconFlow, siliconFlowBaseURL,
			st.SiliconFlowAPIKey, st.SiliconFlowModel, st.TimeoutSeconds), nil
	default:
		return nil, fmt.Errorf("unknown api provider %q", st.APIProvider)
	}
}

// TestConnection sends a tiny prompt and reports whether a non-empty
// response came back.
func TestConnection(ctx context.Context, st Settings) error {
	p, err := newProvider(st)
	if err != nil {
		return err
	}
	resp, err := p.Call(ctx, "请简单回复'测试成功'", "这是一个连接测试")
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) == "" {
		return fmt.Errorf("provider %s returned an empty response", p.Name())
	}
	return nil
}

// httpDo posts a JSON body and decodes a JSON response, mapping
// authentication and parameter rejections to non-retryable errors.
func httpDo(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		var body struct {
			Message string `json:"message"`
			Error   struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Message
		if msg == "" {
			msg = body.Error.Message
		}
		return &authError{status: resp.StatusCode, msg: msg}
	default:
		return fmt.Errorf("llm request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode llm response: %w", err)
	}
	return nil
}
