package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
)

const proposalsQuery = `query Proposals($ids: [String], $first: Int) {
  proposals(first: $first, where: {id_in: $ids}, orderBy: "created", orderDirection: desc) {
    id
    title
    body
    state
    link
  }
}`

// SnapshotClient queries proposal metadata from a snapshot hub.
type SnapshotClient struct {
	url      string
	http     *http.Client
	attempts uint
	backoff  time.Duration
}

func NewSnapshotClient(url string, httpClient *http.Client) *SnapshotClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SnapshotClient{
		url:      url,
		http:     httpClient,
		attempts: 5,
		backoff:  time.Second,
	}
}

// WithRetry overrides the attempt limit and the Fibonacci backoff base.
func (s *SnapshotClient) WithRetry(attempts uint, base time.Duration) *SnapshotClient {
	s.attempts = attempts
	s.backoff = base
	return s
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type proposalsResponse struct {
	Data struct {
		Proposals []SnapshotProposal `json:"proposals"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Proposals fetches snapshot metadata for ids, newest first.
func (s *SnapshotClient) Proposals(ctx context.Context, ids []string) ([]SnapshotProposal, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(graphQLRequest{
		Query:     proposalsQuery,
		Variables: map[string]any{"ids": ids, "first": len(ids)},
	})
	if err != nil {
		return nil, err
	}

	var resp proposalsResponse
	action := func(attempt uint) error {
		resp = proposalsResponse{}
		return s.post(ctx, body, &resp)
	}
	if err := retry.Retry(action, strategy.Limit(s.attempts), strategy.Backoff(backoff.Fibonacci(s.backoff))); err != nil {
		return nil, fmt.Errorf("query snapshot proposals: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("snapshot graphql error: %s", resp.Errors[0].Message)
	}
	return resp.Data.Proposals, nil
}

func (s *SnapshotClient) post(ctx context.Context, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("snapshot hub status code: %v, body: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
