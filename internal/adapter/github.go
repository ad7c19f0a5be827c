package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"statline/internal/domain"
)

const githubGraphQLURL = "https://api.github.com/graphql"

// GitHub applies busy-status intents through the GraphQL changeUserStatus
// mutation.
type GitHub struct {
	Token string
	// OrgID scopes the busy marker to one organization when set.
	OrgID      string
	BaseURL    string
	HTTPClient *http.Client
}

func (g *GitHub) Service() domain.Service { return domain.GitHub }

const changeUserStatusQuery = `mutation($input: ChangeUserStatusInput!) {
  changeUserStatus(input: $input) { status { message } }
}`

func (g *GitHub) Apply(ctx context.Context, in domain.Intent) (string, error) {
	switch v := in.(type) {
	case domain.SetBusy:
		input := map[string]any{
			"message":             v.Message,
			"limitedAvailability": true,
		}
		if v.Emoji != "" {
			input["emoji"] = v.Emoji
		}
		if !v.Until.IsZero() {
			input["expiresAt"] = v.Until.UTC().Format(time.RFC3339)
		}
		note := "limited availability"
		if g.OrgID != "" {
			input["organizationId"] = g.OrgID
			note += " (org only)"
		}
		if err := g.mutate(ctx, input); err != nil {
			return "", err
		}
		return note, nil
	case domain.ClearBusy:
		if err := g.mutate(ctx, map[string]any{}); err != nil {
			return "", err
		}
		return "cleared", nil
	default:
		return "", fmt.Errorf("github: unsupported intent %T", in)
	}
}

func (g *GitHub) mutate(ctx context.Context, input map[string]any) error {
	payload := map[string]any{
		"query":     changeUserStatusQuery,
		"variables": map[string]any{"input": input},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := g.BaseURL
	if endpoint == "" {
		endpoint = githubGraphQLURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "st-cli")
	resp, err := httpClient(g.HTTPClient).Do(req)
	if err != nil {
		return &Error{Service: domain.GitHub, Kind: NetworkFailure, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(domain.GitHub, resp.StatusCode, string(body))
	}
	var out struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &Error{Service: domain.GitHub, Kind: UnexpectedResponse, Err: fmt.Errorf("decode graphql response: %w", err)}
	}
	if len(out.Errors) > 0 {
		return &Error{Service: domain.GitHub, Kind: UnexpectedResponse, Err: fmt.Errorf("graphql: %s", out.Errors[0].Message)}
	}
	return nil
}
