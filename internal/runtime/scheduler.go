package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/3scale-labs/authrep-filter/internal/config"
	"github.com/3scale-labs/authrep-filter/internal/refresher"
)

// Scheduler drives the refresher's timer ticks and wires management
// dispatch responses back into it, standing in for the host's root
// context timer + outbound-call-response callback (spec.md §4.7, §5).
type Scheduler struct {
	cfg        *config.Config
	refresher  *refresher.Refresher
	dispatcher *ManagementDispatcher
	period     time.Duration
	logger     *slog.Logger
}

// NewScheduler builds a Scheduler and wires the dispatcher's response
// callback into the refresher.
func NewScheduler(cfg *config.Config, r *refresher.Refresher, dispatcher *ManagementDispatcher, period time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{cfg: cfg, refresher: r, dispatcher: dispatcher, period: period, logger: logger}
	dispatcher.OnResponse(s.handleResponse)
	return s
}

func (s *Scheduler) handleResponse(token string, body []byte, err error) {
	if mergeErr := s.refresher.OnHTTPCallResponse(context.Background(), token, body, err, s.cfg.ServiceRefs()); mergeErr != nil {
		s.logger.Warn("refresher: dropped outbound response", "error", mergeErr)
	}
}

// Run blocks ticking the refresher until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.refresher.Tick(ctx, now, s.cfg.ServiceRefs()); err != nil {
				s.logger.Error("refresh tick failed", "error", err)
			}
		}
	}
}
