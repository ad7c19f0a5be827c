package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"statline/internal/domain"
)

const (
	slackBaseURL = "https://slack.com/api"
	// Snooze length when DND is requested without a deadline, matching the
	// backend's longest sensible default.
	defaultSnoozeMinutes = 1440
)

// Slack applies status and do-not-disturb intents through the Slack Web
// API.
type Slack struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

func (s *Slack) Service() domain.Service { return domain.Slack }

func (s *Slack) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Slack) Apply(ctx context.Context, in domain.Intent) (string, error) {
	switch v := in.(type) {
	case domain.SetStatus:
		return s.setStatus(ctx, v)
	case domain.SetDoNotDisturb:
		return s.setSnooze(ctx, v)
	case domain.ClearDoNotDisturb:
		return s.endSnooze(ctx)
	default:
		return "", fmt.Errorf("slack: unsupported intent %T", in)
	}
}

func (s *Slack) setStatus(ctx context.Context, in domain.SetStatus) (string, error) {
	var expiration int64
	if !in.ExpiresAt.IsZero() {
		expiration = in.ExpiresAt.Unix()
	}
	body := map[string]any{
		"profile": map[string]any{
			"status_text":       in.Text,
			"status_emoji":      in.Emoji,
			"status_expiration": expiration,
		},
	}
	if err := s.postJSON(ctx, "users.profile.set", body); err != nil {
		return "", err
	}
	if in.Text == "" {
		return "cleared status", nil
	}
	return in.Text + " " + in.Emoji, nil
}

func (s *Slack) setSnooze(ctx context.Context, in domain.SetDoNotDisturb) (string, error) {
	minutes := int64(defaultSnoozeMinutes)
	note := "DND on"
	if !in.Until.IsZero() {
		if diff := int64(in.Until.Sub(s.now()).Minutes()); diff > 0 {
			minutes = diff
			note = "DND until " + clockLabel(s.now(), in.Until)
		}
	}
	form := url.Values{"num_minutes": {strconv.FormatInt(minutes, 10)}}
	if err := s.postForm(ctx, "dnd.setSnooze", form, ""); err != nil {
		return "", err
	}
	return note, nil
}

func (s *Slack) endSnooze(ctx context.Context) (string, error) {
	// dnd.endSnooze answers snooze_not_active when DND is already off,
	// which is a success for our purposes.
	if err := s.postForm(ctx, "dnd.endSnooze", url.Values{}, "snooze_not_active"); err != nil {
		return "", err
	}
	return "DND off", nil
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Slack) postJSON(ctx context.Context, method string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return s.post(ctx, method, "application/json; charset=utf-8", strings.NewReader(string(b)), "")
}

func (s *Slack) postForm(ctx context.Context, method string, form url.Values, tolerate string) error {
	return s.post(ctx, method, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), tolerate)
}

func (s *Slack) post(ctx context.Context, method, contentType string, body io.Reader, tolerate string) error {
	base := s.BaseURL
	if base == "" {
		base = slackBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/"+method, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	req.Header.Set("Content-Type", contentType)
	resp, err := httpClient(s.HTTPClient).Do(req)
	if err != nil {
		return &Error{Service: domain.Slack, Kind: NetworkFailure, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return classifyStatus(domain.Slack, resp.StatusCode, string(b))
	}
	var out slackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &Error{Service: domain.Slack, Kind: UnexpectedResponse, Err: fmt.Errorf("decode %s: %w", method, err)}
	}
	if !out.OK && out.Error != tolerate {
		kind := UnexpectedResponse
		switch out.Error {
		case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
			kind = AuthRejected
		}
		return &Error{Service: domain.Slack, Kind: kind, Err: fmt.Errorf("%s: %s", method, out.Error)}
	}
	return nil
}
