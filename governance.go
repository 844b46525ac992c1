package bits

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/store"
)

// Politics is the public governance summary.
type Politics struct {
	President      string `json:"president"`
	ElectionActive bool   `json:"election_active"`
}

// Vote records voter's vote for candidate for president. A voter may vote
// once per term.
func (e *Engine) Vote(ctx context.Context, voter, candidate string) error {
	voter, err := accountName("voter", voter)
	if err != nil {
		return err
	}
	candidate, err = accountName("candidate", candidate)
	if err != nil {
		return err
	}

	err = store.Update(ctx, e.store, governance.Resource, func(r *governance.Record) error {
		return r.Vote(governance.President, candidate, voter, e.now())
	})
	if errors.Is(err, governance.ErrAlreadyVoted) {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, voter)
	}
	if err != nil {
		return err
	}

	e.plugins.EmitVoteCast(ctx, governance.President, candidate, voter)
	e.logger.Debug("vote cast", "position", governance.President, "candidate", candidate, "voter", voter)
	return nil
}

// Candidates lists everyone with at least one vote in the running
// presidential election.
func (e *Engine) Candidates(ctx context.Context) ([]string, error) {
	rec, err := store.Read(ctx, e.store, governance.Resource)
	if err != nil {
		return nil, err
	}
	return rec.Election(governance.President).Candidates(), nil
}

// Holder returns the current holder of position, or "" if vacant.
func (e *Engine) Holder(ctx context.Context, position string) (string, error) {
	rec, err := store.Read(ctx, e.store, governance.Resource)
	if err != nil {
		return "", err
	}
	return rec.Holder(position), nil
}

// Politics reports the president and whether an election term is running.
func (e *Engine) Politics(ctx context.Context) (Politics, error) {
	rec, err := store.Read(ctx, e.store, governance.Resource)
	if err != nil {
		return Politics{}, err
	}
	return Politics{
		President:      rec.Holder(governance.President),
		ElectionActive: rec.Election(governance.President).Active(e.now(), e.term),
	}, nil
}

// FinalizeElections closes every expired term, installs the winners and
// opens the next term.
func (e *Engine) FinalizeElections(ctx context.Context) ([]governance.Outcome, error) {
	var outcomes []governance.Outcome
	err := store.Update(ctx, e.store, governance.Resource, func(r *governance.Record) error {
		outcomes = r.FinalizeExpired(e.now(), e.term)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range outcomes {
		o := outcomes[i]
		e.plugins.EmitElectionFinalized(ctx, &o)
		if o.Changed {
			e.notify(ctx, o.Holder, fmt.Sprintf("You won the %s election with %d votes!", o.Position, o.Votes))
			if o.PreviousHolder != "" {
				e.notify(ctx, o.PreviousHolder, fmt.Sprintf("Your term as %s has ended. %s is the new %s.", o.Position, o.Holder, o.Position))
			}
		}
		e.logger.Info("election finalized",
			"position", o.Position,
			"holder", o.Holder,
			"previous_holder", o.PreviousHolder,
			"votes", o.Votes,
			"changed", o.Changed,
		)
	}
	return outcomes, nil
}
