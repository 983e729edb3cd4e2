package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Runner drives one Agent per target
type Runner struct {
	agents []*Agent
	log    zerolog.Logger
}

// NewRunner builds an agent for every target, sharing scanner and reporter
func NewRunner(targets []Config, scanner ScanSource, reporter Reporter, log zerolog.Logger) *Runner {
	r := &Runner{log: log}
	for _, cfg := range targets {
		r.agents = append(r.agents, New(cfg, scanner, reporter, log))
	}
	return r
}

// Agents returns the managed agents
func (r *Runner) Agents() []*Agent {
	return r.agents
}

// Run starts every agent and blocks until all have stopped. Cancellation of
// ctx is a normal shutdown and is not reported as an error.
func (r *Runner) Run(ctx context.Context) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)

	for _, a := range r.agents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			mu.Lock()
			result = multierror.Append(result, err)
			mu.Unlock()
		}()
	}

	r.log.Info().Int("agents", len(r.agents)).Msg("Scan agents started")
	wg.Wait()
	r.log.Info().Msg("Scan agents stopped")

	return result.ErrorOrNil()
}
