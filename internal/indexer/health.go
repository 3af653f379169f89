package indexer

import "poolOracle/internal/model"

// Health exposes the runner state and subscriber statuses.
type Health struct {
	Runner     *Runner
	Supervisor *Supervisor
}

func (h Health) StateName() string {
	if h.Runner == nil {
		return StateIdle.String()
	}
	return h.Runner.State().String()
}

func (h Health) Subscribers() []model.SubscriberStatus {
	if h.Supervisor == nil {
		return nil
	}
	return h.Supervisor.Statuses()
}
