// Package app holds the wired application container shared by the CLI
// commands. Everything in it is constructed in main's Before hook.
package app

import (
	"context"
	"net/http"

	"github.com/colonyops/cueline/internal/core/config"
	"github.com/colonyops/cueline/internal/core/eventbus"
	"github.com/colonyops/cueline/internal/core/milestone"
	"github.com/colonyops/cueline/internal/core/roster"
	"github.com/colonyops/cueline/internal/core/runsheet"
	"github.com/colonyops/cueline/internal/core/schedule"
	"github.com/colonyops/cueline/internal/data/db"
	"github.com/colonyops/cueline/internal/metrics"
)

// App is the assembled service graph.
type App struct {
	Config   *config.Config
	DB       *db.DB
	Slots    schedule.Store
	Members  roster.Store
	Records  milestone.Store
	Bus      *eventbus.EventBus
	Runsheet *runsheet.Service
	Metrics  *metrics.Collector
	Webhook  http.Handler
}

// InstrumentedNotifier wraps a notifier with delivery counters.
type InstrumentedNotifier struct {
	Inner     milestone.Notifier
	Collector *metrics.Collector
}

var _ milestone.Notifier = (*InstrumentedNotifier)(nil)

func (n *InstrumentedNotifier) SendBulk(ctx context.Context, userIDs []string, text string) (sent, failed int) {
	sent, failed = n.Inner.SendBulk(ctx, userIDs, text)
	if n.Collector != nil {
		n.Collector.RecordNotifications(sent, failed)
	}
	return sent, failed
}
