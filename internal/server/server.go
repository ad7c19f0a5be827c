// Package server exposes the dispatcher over HTTP so personal automations
// (calendar hooks, stream decks) can set status without a shell.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"statline/internal/domain"
	"statline/internal/engine"
	"statline/internal/history"
	"statline/internal/registry"
	"statline/internal/when"
)

// Config for the HTTP handler.
type Config struct {
	Engine   engine.Engine
	History  *history.Store
	BasePath string
	Auth     AuthConfig
}

// New returns an HTTP handler exposing the statline API.
func New(cfg Config) (http.Handler, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	api := humachi.New(router, huma.DefaultConfig("statline API", "0.1.0"))
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerKeywords(group)
	registerStatus(group, cfg.Engine)
	registerHistory(group, cfg.History)

	return router, nil
}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

type keywordInfo struct {
	Keyword       string   `json:"keyword" example:"lunch"`
	About         string   `json:"about"`
	Services      []string `json:"services"`
	NeedsDeadline bool     `json:"needs_deadline"`
}

type keywordsOutput struct {
	Body struct {
		Items []keywordInfo `json:"items"`
	}
}

func registerKeywords(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-keywords",
		Method:      http.MethodGet,
		Path:        "/keywords",
		Summary:     "List presence keywords",
	}, func(ctx context.Context, _ *struct{}) (*keywordsOutput, error) {
		out := &keywordsOutput{}
		for _, e := range registry.All() {
			info := keywordInfo{
				Keyword:       e.Keyword,
				About:         e.About,
				NeedsDeadline: e.NeedsDeadline(),
			}
			for _, svc := range e.Services() {
				info.Services = append(info.Services, string(svc))
			}
			out.Body.Items = append(out.Body.Items, info)
		}
		return out, nil
	})
}

type statusInput struct {
	Body struct {
		Keyword string `json:"keyword" minLength:"1" doc:"Presence keyword, e.g. lunch or vacation"`
		Date    string `json:"date,omitempty" doc:"Optional date token: friday, tomorrow, 3/10"`
		Time    string `json:"time,omitempty" doc:"Optional time token: 8am, 15:00"`
	}
}

type statusOutput struct {
	Body domain.Report
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "set-status",
		Method:      http.MethodPost,
		Path:        "/status",
		Summary:     "Broadcast a presence intent",
		Description: "Dispatches the keyword to every configured service. Per-service failures are reported in the body, not as an HTTP error.",
	}, func(ctx context.Context, input *statusInput) (*statusOutput, error) {
		report, err := e.Run(ctx, input.Body.Keyword, input.Body.Date, input.Body.Time)
		if err != nil {
			var unknown registry.UnknownKeywordError
			var badDate when.UnparseableDateError
			var badTime when.UnparseableTimeError
			if errors.As(err, &unknown) || errors.As(err, &badDate) || errors.As(err, &badTime) {
				return nil, huma.Error400BadRequest(err.Error())
			}
			return nil, huma.Error500InternalServerError("dispatch failed", err)
		}
		return &statusOutput{Body: report}, nil
	})
}

type historyInput struct {
	Limit   int    `query:"limit" default:"20" minimum:"1" maximum:"200"`
	Keyword string `query:"keyword"`
}

type historyOutput struct {
	Body struct {
		Items []domain.HistoryEntry `json:"items"`
	}
}

func registerHistory(api huma.API, store *history.Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-history",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "List recent invocations",
	}, func(ctx context.Context, input *historyInput) (*historyOutput, error) {
		out := &historyOutput{}
		if store == nil {
			return out, nil
		}
		items, err := store.Latest(ctx, input.Limit, input.Keyword)
		if err != nil {
			return nil, huma.Error500InternalServerError("read history", err)
		}
		out.Body.Items = items
		return out, nil
	})
}
