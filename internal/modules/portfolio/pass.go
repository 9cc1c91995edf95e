package portfolio

import (
	"fmt"
	"sync"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// transitions lists the allowed next states for each state
var transitions = map[domain.PassState][]domain.PassState{
	domain.PassIdle:        {domain.PassFetching},
	domain.PassFetching:    {domain.PassResolving, domain.PassFailed},
	domain.PassResolving:   {domain.PassAggregating},
	domain.PassAggregating: {domain.PassDone},
}

// Pass is one fetch -> resolve -> convert -> aggregate execution.
// A pass never returns to Idle; a new refresh needs a new Pass.
type Pass struct {
	ID string

	mu    sync.Mutex
	state domain.PassState
	err   error
	log   zerolog.Logger
}

// NewPass creates an idle pass with a fresh id
func NewPass(log zerolog.Logger) *Pass {
	id := uuid.NewString()
	return &Pass{
		ID:    id,
		state: domain.PassIdle,
		log:   log.With().Str("pass_id", id).Logger(),
	}
}

// State returns the current state
func (p *Pass) State() domain.PassState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Err returns the error that failed the pass, if any
func (p *Pass) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Logger returns the pass logger carrying pass_id
func (p *Pass) Logger() zerolog.Logger {
	return p.log
}

// Advance moves the pass to next if the transition is allowed
func (p *Pass) Advance(next domain.PassState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, allowed := range transitions[p.state] {
		if allowed == next {
			p.log.Debug().
				Str("from", string(p.state)).
				Str("to", string(next)).
				Msg("Pass state changed")
			p.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid pass transition %s -> %s", p.state, next)
}

// Fail moves the pass to Failed, recording the cause
func (p *Pass) Fail(err error) error {
	if transitionErr := p.Advance(domain.PassFailed); transitionErr != nil {
		return transitionErr
	}
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
	return nil
}
