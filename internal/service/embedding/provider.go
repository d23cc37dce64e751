package embedding

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Provider calls an embedding API for one piece of text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// httpProvider calls an OpenAI-compatible embeddings endpoint. Grounded
// on the teacher's publishing clients (HTTPSlackWebhookClient,
// pagerduty/rootly clients): a single *http.Client with an explicit
// transport (TLS floor, bounded idle connections) held for the life of
// the client rather than constructed per call.
type httpProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewHTTPProvider constructs a Provider against baseURL (an
// OpenAI-compatible /embeddings endpoint's host, without the path).
func NewHTTPProvider(baseURL, apiKey, model string) Provider {
	return &httpProvider{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed posts text to the provider and returns the resulting vector.
// ctx carries the caller's timeout; this makes no timing decisions of
// its own.
func (p *httpProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ProviderError{
			Retryable:  true,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("embedding provider rate limited: %s", respBody),
		}
	}
	if resp.StatusCode >= 500 {
		return nil, &ProviderError{Retryable: true, Err: fmt.Errorf("embedding provider server error %d: %s", resp.StatusCode, respBody)}
	}
	if resp.StatusCode >= 400 {
		return nil, &ProviderError{Retryable: false, Err: fmt.Errorf("embedding provider rejected request %d: %s", resp.StatusCode, respBody)}
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{Retryable: false, Err: err}
	}
	if len(parsed.Data) == 0 {
		return nil, &ProviderError{Retryable: false, Err: fmt.Errorf("embedding provider returned no vectors")}
	}
	return parsed.Data[0].Embedding, nil
}

// ProviderError classifies a provider failure as retryable (transport
// error, 5xx, 429) or terminal, and carries a provider-supplied delay
// for the 429 case.
type ProviderError struct {
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string { return e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		return secs
	}
	return 0
}
