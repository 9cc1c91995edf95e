package scheduler

import (
	"context"
	"time"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
)

// Refresher runs one valuation pass and stores its outcome
type Refresher interface {
	Refresh(ctx context.Context) (*domain.PortfolioSummary, error)
}

// RefreshJob periodically revalues the portfolio
type RefreshJob struct {
	refresher Refresher
	timeout   time.Duration
	log       zerolog.Logger
}

// NewRefreshJob creates a refresh job bounding each pass by timeout
func NewRefreshJob(refresher Refresher, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		timeout:   timeout,
		log:       log.With().Str("job", "portfolio_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "portfolio_refresh"
}

// Run executes one pass
func (j *RefreshJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	summary, err := j.refresher.Refresh(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("pass_id", summary.PassID).
		Float64("total", summary.TotalValue).
		Str("currency", summary.Currency).
		Bool("incomplete", summary.Incomplete).
		Msg("Scheduled refresh completed")
	return nil
}
