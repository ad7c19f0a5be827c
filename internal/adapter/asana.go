package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"statline/internal/domain"
)

const asanaBaseURL = "https://app.asana.com/api/1.0"

// Asana cannot set out-of-office through its API; it can only read
// vacation_dates. The adapter turns RemindOutOfOffice intents into
// actionable reminder notes.
type Asana struct {
	Token      string
	UserGID    string
	BaseURL    string
	HTTPClient *http.Client
}

func (a *Asana) Service() domain.Service { return domain.Asana }

const oooHint = "Profile (icon) > Set out of office"

func (a *Asana) Apply(ctx context.Context, in domain.Intent) (string, error) {
	remind, ok := in.(domain.RemindOutOfOffice)
	if !ok {
		return "", fmt.Errorf("asana: unsupported intent %T", in)
	}
	set, err := a.vacationSet(ctx)
	if err != nil {
		return "", err
	}
	switch {
	case remind.Clear && set:
		return "clear Out of Office manually: " + oooHint, nil
	case remind.Clear:
		return "Out of Office not set", nil
	case set:
		return "Out of Office already set", nil
	default:
		return "set Out of Office manually: " + oooHint, nil
	}
}

func (a *Asana) vacationSet(ctx context.Context) (bool, error) {
	if a.UserGID == "" {
		return false, fmt.Errorf("asana_user_gid not set in config")
	}
	base := a.BaseURL
	if base == "" {
		base = asanaBaseURL
	}
	endpoint := fmt.Sprintf("%s/users/%s/workspace_memberships?opt_fields=vacation_dates",
		strings.TrimRight(base, "/"), url.PathEscape(a.UserGID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	resp, err := httpClient(a.HTTPClient).Do(req)
	if err != nil {
		return false, &Error{Service: domain.Asana, Kind: NetworkFailure, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return false, classifyStatus(domain.Asana, resp.StatusCode, string(body))
	}
	var out struct {
		Data []struct {
			VacationDates *struct {
				StartOn string `json:"start_on"`
				EndOn   string `json:"end_on"`
			} `json:"vacation_dates"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, &Error{Service: domain.Asana, Kind: UnexpectedResponse, Err: fmt.Errorf("decode workspace memberships: %w", err)}
	}
	for _, m := range out.Data {
		if m.VacationDates != nil {
			return true, nil
		}
	}
	return false, nil
}
