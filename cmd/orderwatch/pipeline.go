package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/setevik/orderwatch/internal/debounce"
	"github.com/setevik/orderwatch/internal/diag"
	"github.com/setevik/orderwatch/internal/matcher"
	"github.com/setevik/orderwatch/internal/notify"
	"github.com/setevik/orderwatch/internal/reset"
	"github.com/setevik/orderwatch/internal/store"
	"github.com/setevik/orderwatch/internal/trigger"
)

// pipeline chains the per-line stages: match, debounce, capture diagnostics,
// dispatch the reset, record history, notify. Lines are handled one at a
// time in input order; every stage after the debounce check is best-effort.
type pipeline struct {
	matcher    *matcher.Matcher
	cooldown   *debounce.Store
	capturer   *diag.Capturer
	dispatcher *reset.Dispatcher
	notifier   *notify.Notifier
	db         *store.DB
	now        func() time.Time
}

func (p *pipeline) handleLine(ctx context.Context, line string) {
	orderID, ok := p.matcher.Match(line)
	if !ok {
		return
	}

	now := p.now()

	elapsed, ok := p.cooldown.ShouldTrigger(orderID, now)
	if !ok {
		slog.Info("skipping reset, within cooldown",
			"order", orderID,
			"last_reset_seconds_ago", int(elapsed.Seconds()),
		)
		return
	}

	slog.Info("detected failed proof, resetting", "order", orderID)

	tr := trigger.New(orderID, now, line)

	// Capture diagnostics before the reset tears the failed state down.
	diagFile, err := p.capturer.Capture(ctx, orderID, now, line)
	if err != nil {
		slog.Warn("diagnostic capture failed", "order", orderID, "error", err)
	} else {
		tr.DiagFile = diagFile
		slog.Info("diagnostics captured", "order", orderID, "file", diagFile)
	}

	// The cooldown stamp is recorded only on success so a failed reset is
	// retried on the very next matching line.
	if err := p.dispatcher.Reset(ctx, orderID); err != nil {
		tr.Outcome = trigger.OutcomeResetFailed
		slog.Error("failed to reset order", "order", orderID, "error", err)
	} else {
		tr.Outcome = trigger.OutcomeResetOK
		p.cooldown.Record(orderID, now)
		slog.Info("reset executed successfully", "order", orderID)
	}

	if err := p.db.Insert(tr); err != nil {
		slog.Error("failed to store trigger", "order", orderID, "error", err)
	}

	if !p.notifier.Enabled() {
		return
	}
	if err := p.notifier.Send(ctx, notify.ResetMessage(orderID)); err != nil {
		slog.Error("failed to send telegram notification", "order", orderID, "error", err)
		return
	}
	tr.Notified = true
	if err := p.db.MarkNotified(tr.ID); err != nil {
		slog.Error("failed to mark trigger notified", "order", orderID, "error", err)
	}
}
