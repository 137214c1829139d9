// Package client is a thin wrapper around the classifier HTTP API.
//
// Methods return *APIError when the server answers with a non-successful
// status code.
//
//	c := client.New("http://localhost:8080")
//	resp, err := c.Predict(ctx, []string{"44", "blue-collar"}, client.Parallel)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Strategy selects how the server computes distances. The empty strategy
// uses the server default.
type Strategy string

const (
	Serial   Strategy = "serial"
	Parallel Strategy = "parallel"
)

type PredictRequest struct {
	Features  []string `json:"features"`
	Strategy  Strategy `json:"strategy,omitempty"`
	Neighbors bool     `json:"neighbors,omitempty"`
}

// Neighbor is a selected training row and its distance to the query.
type Neighbor struct {
	Index    int     `json:"index"`
	Distance float64 `json:"distance"`
}

type PredictResponse struct {
	Label     bool       `json:"label"`
	Strategy  Strategy   `json:"strategy"`
	Cached    bool       `json:"cached"`
	Neighbors []Neighbor `json:"neighbors,omitempty"`
}

type Row struct {
	Features []string `json:"features"`
	Label    bool     `json:"label"`
}

type EvaluateRequest struct {
	Rows              []Row    `json:"rows"`
	Strategy          Strategy `json:"strategy,omitempty"`
	Concurrency       int      `json:"concurrency,omitempty"`
	CountErrorsAsMiss bool     `json:"count_errors_as_miss,omitempty"`
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type EvaluateResponse struct {
	Strategy Strategy   `json:"strategy"`
	Correct  int        `json:"correct"`
	Total    int        `json:"total"`
	Failed   int        `json:"failed"`
	Accuracy float64    `json:"accuracy"`
	Errors   []RowError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError represents an error returned by the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("knnvote: %d %s", e.StatusCode, e.Message)
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// request sends body as JSON and decodes the reply into out.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e errorResponse
		if json.Unmarshal(respBody, &e) != nil || e.Error == "" {
			e.Error = string(respBody)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// HealthCheck reports whether the server answers with status ok.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	var result map[string]string
	if err := c.request(ctx, http.MethodGet, "/", nil, &result); err != nil {
		return false, err
	}
	return result["status"] == "ok", nil
}

// Predict classifies one row. An empty strategy uses the server default.
func (c *Client) Predict(ctx context.Context, features []string, strategy Strategy) (*PredictResponse, error) {
	return c.predict(ctx, PredictRequest{Features: features, Strategy: strategy})
}

// Neighbors classifies one row and returns the selected neighbors with it.
func (c *Client) Neighbors(ctx context.Context, features []string, strategy Strategy) (*PredictResponse, error) {
	return c.predict(ctx, PredictRequest{Features: features, Strategy: strategy, Neighbors: true})
}

func (c *Client) predict(ctx context.Context, req PredictRequest) (*PredictResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features must not be empty")
	}
	var resp PredictResponse
	if err := c.request(ctx, http.MethodPost, "/v1/predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Evaluate scores a labeled test set on the server.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	var resp EvaluateResponse
	if err := c.request(ctx, http.MethodPost, "/v1/evaluate", req, &resp); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return &resp, nil
}
