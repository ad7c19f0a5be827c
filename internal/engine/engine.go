// Package engine dispatches one presence keyword across the configured
// service adapters with per-service failure isolation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"statline/internal/adapter"
	"statline/internal/domain"
	"statline/internal/history"
	"statline/internal/registry"
	"statline/internal/when"
)

type Engine struct {
	// Adapters holds one entry per configured service. A service the
	// keyword maps to but that has no adapter here is reported as skipped.
	Adapters []adapter.Adapter
	// History, when set, records every produced report.
	History *history.Store
	// Serial disables the parallel fan-out; dispatch then follows registry
	// declaration order strictly.
	Serial bool
	Now    func() time.Time
}

func New(adapters []adapter.Adapter) Engine {
	return Engine{Adapters: adapters, Now: time.Now}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run looks up the keyword, resolves the deadline at most once and only if
// some selected intent needs it, applies each mapped service's intents in
// isolation, and returns the combined report. The returned error is fatal
// (unknown keyword, unparseable token): nothing was dispatched. Adapter
// failures never surface here; they live in the report entries.
func (e Engine) Run(ctx context.Context, keyword, dateToken, timeToken string) (domain.Report, error) {
	entry, err := registry.Lookup(keyword)
	if err != nil {
		return domain.Report{}, err
	}

	report := domain.Report{
		Keyword: entry.Keyword,
		Entries: make([]domain.Outcome, len(entry.Templates)),
	}

	var deadline time.Time
	if entry.NeedsDeadline() {
		deadline, err = e.resolveDeadline(entry, dateToken, timeToken)
		if err != nil {
			return domain.Report{}, err
		}
		report.Deadline = &deadline
	}

	var g errgroup.Group
	for i, tmpl := range entry.Templates {
		ad := e.adapterFor(tmpl.Service)
		if ad == nil {
			report.Entries[i] = domain.Outcome{
				Service: tmpl.Service,
				State:   domain.StateSkipped,
				Detail:  "not configured",
			}
			continue
		}
		// Each branch owns exactly one report slot, so the fan-out needs
		// no locking.
		slot := &report.Entries[i]
		run := func() error {
			*slot = applyService(ctx, ad, tmpl, deadline)
			return nil
		}
		if e.Serial {
			_ = run()
		} else {
			g.Go(run)
		}
	}
	_ = g.Wait()

	if e.History != nil {
		if _, err := e.History.Append(ctx, report); err != nil {
			return report, fmt.Errorf("record history: %w", err)
		}
	}
	return report, nil
}

// resolveDeadline applies the keyword's rounding-and-offset policy: bare
// invocations land on the next quarter hour plus the keyword's offset,
// tokened invocations resolve exactly.
func (e Engine) resolveDeadline(entry registry.Entry, dateToken, timeToken string) (time.Time, error) {
	d, err := when.Resolve(e.now(), dateToken, timeToken)
	if err != nil {
		return time.Time{}, err
	}
	if dateToken == "" && timeToken == "" {
		d = d.Add(entry.Offset)
	}
	return d, nil
}

func (e Engine) adapterFor(service domain.Service) adapter.Adapter {
	for _, a := range e.Adapters {
		if a.Service() == service {
			return a
		}
	}
	return nil
}

// applyService materializes one service's intents and applies them in
// order. The first failure ends the service's run; earlier intents are not
// rolled back.
func applyService(ctx context.Context, ad adapter.Adapter, tmpl registry.Template, deadline time.Time) domain.Outcome {
	out := domain.Outcome{Service: tmpl.Service}
	var notes []string
	for _, in := range tmpl.Build(deadline) {
		note, err := ad.Apply(ctx, in)
		if err != nil {
			out.State = domain.StateFailed
			out.Detail = strings.Join(notes, ", ")
			out.Err = err.Error()
			return out
		}
		if note != "" {
			notes = append(notes, note)
		}
	}
	out.State = domain.StateOK
	out.Detail = strings.Join(notes, ", ")
	return out
}
