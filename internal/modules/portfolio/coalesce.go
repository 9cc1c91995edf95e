package portfolio

import (
	"context"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// fetchKey is the only singleflight key: a source never has more than one
// upstream fetch in flight, whatever the target currency
const fetchKey = "fetch"

// coalescedSource shares one in-flight fetch between overlapping callers so
// a manual refresh racing the scheduler never signs a second request.
type coalescedSource struct {
	source      domain.HoldingSource
	independent bool
	metrics     *metrics.Metrics
	sf          singleflight.Group
}

// sharedFetch pairs holdings with the target they were fetched for
type sharedFetch struct {
	target   string
	holdings []domain.RawHolding
}

// Coalesce wraps source so at most one upstream fetch runs at a time.
// Callers arriving during a fetch join it when the result fits their target
// (always, for TargetIndependent sources); otherwise they wait for it to
// finish and then start their own.
func Coalesce(source domain.HoldingSource, m *metrics.Metrics) domain.HoldingSource {
	if c, ok := source.(*coalescedSource); ok {
		return c
	}
	c := &coalescedSource{source: source, metrics: m}
	if ti, ok := source.(domain.TargetIndependent); ok {
		c.independent = ti.TargetIndependent()
	}
	return c
}

func (c *coalescedSource) Name() string {
	return c.source.Name()
}

// TargetIndependent forwards the wrapped source's answer
func (c *coalescedSource) TargetIndependent() bool {
	return c.independent
}

// Fetch joins or starts the in-flight fetch. The shared fetch is detached
// from any single caller's cancellation; a cancelled caller stops waiting
// but does not abort the fetch for the others.
func (c *coalescedSource) Fetch(ctx context.Context, targetCurrency string) ([]domain.RawHolding, error) {
	detached := context.WithoutCancel(ctx)

	for {
		ch := c.sf.DoChan(fetchKey, func() (interface{}, error) {
			holdings, err := c.source.Fetch(detached, targetCurrency)
			c.metrics.ObserveFetch(c.source.Name(), err)
			return sharedFetch{target: targetCurrency, holdings: holdings}, err
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		shared, _ := res.Val.(sharedFetch)
		if shared.target != targetCurrency && !c.independent {
			// the fetch we waited on was for another target; the key is
			// free again, so the next DoChan starts or joins a new fetch
			continue
		}

		if res.Shared {
			c.metrics.ObserveCoalesced(c.source.Name())
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.RawHolding(nil), shared.holdings...), nil
	}
}
