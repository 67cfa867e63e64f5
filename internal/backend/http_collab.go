package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

// httpCollabStore speaks JSON to the collaboration service. Every failure,
// including timeouts and non-2xx statuses, surfaces as ErrRemoteFailure so
// the sync engine can retry rather than abort.
type httpCollabStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCollabStore(baseURL string) CollabStore {
	return &httpCollabStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *httpCollabStore) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: collaboration store returned status %d", domain.ErrRemoteFailure, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", domain.ErrRemoteFailure, err)
		}
	}
	return nil
}

func (s *httpCollabStore) CreateSharedContext(ctx context.Context, recipients []string, keyShares [][]byte) (string, error) {
	var result struct {
		ContextID string `json:"context_id"`
	}

	err := s.post(ctx, "/contexts", map[string]interface{}{
		"recipients": recipients,
		"key_shares": keyShares,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.ContextID, nil
}

func (s *httpCollabStore) GetSharedContext(ctx context.Context, noteID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/contexts/%s", s.baseURL, noteID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("shared context for note %s: %w", noteID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: collaboration store returned status %d", domain.ErrRemoteFailure, resp.StatusCode)
	}

	var result struct {
		Members []string `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrRemoteFailure, err)
	}
	return result.Members, nil
}

func (s *httpCollabStore) Propose(ctx context.Context, actions []domain.Action) (string, error) {
	var result struct {
		ProposalID string `json:"proposal_id"`
	}

	err := s.post(ctx, "/proposals", map[string]interface{}{
		"actions": actions,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.ProposalID, nil
}

func (s *httpCollabStore) Approve(ctx context.Context, proposalID string) error {
	return s.post(ctx, fmt.Sprintf("/proposals/%s/approve", proposalID), map[string]interface{}{}, nil)
}

// httpExternalCaller delivers external-call and transfer actions through
// the collaboration service's execution endpoint.
type httpExternalCaller struct {
	store *httpCollabStore
}

func NewHTTPExternalCaller(baseURL string) ExternalCaller {
	return &httpExternalCaller{
		store: &httpCollabStore{
			baseURL: baseURL,
			client:  &http.Client{Timeout: 10 * time.Second},
		},
	}
}

func (c *httpExternalCaller) Call(ctx context.Context, target, method, args string, deposit uint64) error {
	return c.store.post(ctx, "/external/call", map[string]interface{}{
		"target":  target,
		"method":  method,
		"args":    args,
		"deposit": deposit,
	}, nil)
}

func (c *httpExternalCaller) Transfer(ctx context.Context, target string, amount uint64) error {
	return c.store.post(ctx, "/external/transfer", map[string]interface{}{
		"target": target,
		"amount": amount,
	}, nil)
}
