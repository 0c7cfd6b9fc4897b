package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxErrorBodyBytes     = 512
)

// ExecutionRequest is one test case handed to the execution service.
type ExecutionRequest struct {
	SourceCode     string `json:"source_code"`
	LanguageID     int    `json:"language_id"`
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
	CallbackURL    string `json:"callback_url"`
}

// Client submits work to a Judge0-compatible execution service.
type Client interface {
	// Submit queues req and returns the execution token. The verdict arrives
	// later through the callback URL.
	Submit(ctx context.Context, req ExecutionRequest) (string, error)
}

// Judge0Config configures Judge0Client.
type Judge0Config struct {
	BaseURL string        `yaml:"baseURL"`
	Timeout time.Duration `yaml:"timeout"`
	// AuthToken is sent as X-Auth-Token when set.
	AuthToken string `yaml:"authToken"`
}

// Judge0Client talks to POST /submissions in asynchronous mode.
type Judge0Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func NewJudge0Client(cfg Judge0Config) (*Judge0Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("judge0 baseURL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	return &Judge0Client{
		baseURL:   baseURL,
		authToken: cfg.AuthToken,
		http:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type submitResponse struct {
	Token string `json:"token"`
}

func (c *Judge0Client) Submit(ctx context.Context, req ExecutionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode execution request failed: %w", err)
	}
	url := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execution service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("execution service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode execution response failed: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("execution service returned an empty token")
	}
	return out.Token, nil
}
