package replicate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"posegen/internal/infra"
	"posegen/internal/providers/prediction"
)

// DefaultModelVersion is the ControlNet pose model used for generations.
const DefaultModelVersion = "jagilley/controlnet-pose:0304f7f774ba7341ef754231f794b1ba3d129e3c46af3022241325ae0c50fb99"

// Options configures the Replicate client.
type Options struct {
	APIToken          string
	BaseURL           string
	ModelVersion      string
	HTTPClient        *http.Client
	Logger            *infra.Logger
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken   string
	baseURL    string
	version    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
}

type createRequest struct {
	Version string      `json:"version"`
	Input   createInput `json:"input"`
}

type createInput struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("replicate: invalid base url: %w", err)
	}
	version := modelVersionHash(opts.ModelVersion)
	if version == "" {
		version = modelVersionHash(DefaultModelVersion)
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		version:    version,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// ModelVersion returns the configured model version hash.
func (c *Client) ModelVersion() string {
	return c.version
}

// Submit creates a prediction and returns its id without waiting for completion.
func (c *Client) Submit(ctx context.Context, req prediction.SubmitRequest) (string, error) {
	if !c.HasCredentials() {
		return "", prediction.ErrMissingCredentials
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("replicate: prompt is required")
	}
	if len(req.Image) == 0 {
		return "", errors.New("replicate: image is required")
	}
	mime := strings.TrimSpace(req.MIMEType)
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}
	payload := createRequest{
		Version: c.version,
		Input: createInput{
			Image:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image),
			Prompt: prompt,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("replicate: encode request: %w", err)
	}
	decoded, err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", errors.New("replicate: empty prediction id")
	}
	c.logger.Debug().
		Str("prediction_id", decoded.ID).
		Str("status", decoded.Status).
		Str("request_id", req.RequestID).
		Msg("replicate: prediction created")
	return decoded.ID, nil
}

// Status fetches the current state of a prediction.
func (c *Client) Status(ctx context.Context, predictionID string) (*prediction.Prediction, error) {
	if !c.HasCredentials() {
		return nil, prediction.ErrMissingCredentials
	}
	id := strings.TrimSpace(predictionID)
	if id == "" {
		return nil, errors.New("replicate: prediction id is required")
	}
	decoded, err := c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	outputs, err := decodeOutputs(decoded.Output)
	if err != nil {
		return nil, err
	}
	return &prediction.Prediction{
		ID:      firstNonEmpty(decoded.ID, id),
		Status:  prediction.Status(decoded.Status),
		Outputs: outputs,
		Error:   decodeError(decoded.Error),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*predictionResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("replicate: rate limit wait: %w", err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, fmt.Errorf("replicate: %s (status %d)", detail.Detail, resp.StatusCode)
		}
		return nil, fmt.Errorf("replicate: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded predictionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	return &decoded, nil
}

// decodeOutputs accepts either a list of URLs or a single URL.
func decodeOutputs(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("replicate: decode output: %w", err)
	}
	return []string{single}, nil
}

func decodeError(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var msg string
	if err := json.Unmarshal(trimmed, &msg); err == nil {
		return msg
	}
	return string(trimmed)
}

// modelVersionHash strips an optional "owner/model:" prefix.
func modelVersionHash(v string) string {
	v = strings.TrimSpace(v)
	if idx := strings.LastIndex(v, ":"); idx >= 0 {
		return v[idx+1:]
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ prediction.CredentialedService = (*Client)(nil)
