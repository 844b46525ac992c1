package bits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/backup"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/types"
)

// VerifyReport is the outcome of one reconciliation.
type VerifyReport struct {
	Actual   types.Bits      `json:"actual"`
	Expected types.Bits      `json:"expected"`
	Drift    []account.Drift `json:"drift,omitempty"`
	// Healed is true when drifted accounts were overwritten with their
	// replayed balances.
	Healed bool `json:"healed"`
	// Inflated is true when the stored supply exceeded the replayed supply.
	Inflated  bool   `json:"inflated"`
	FrozenDir string `json:"frozen_dir,omitempty"`
}

// Frozen reports whether an inflation anomaly was detected since start.
// Operations keep running while frozen.
func (e *Engine) Frozen() bool { return e.frozen.Load() }

// Verify replays the transaction log and compares it with the stored
// balances while holding the balances lock.
//
// A stored supply larger than the replayed supply is an inflation anomaly:
// the balances and the latest snapshot are frozen into a locked directory,
// Frozen starts reporting true and ErrIntegrityAnomaly is returned. Any
// other drift is self-healed by overwriting the drifted accounts.
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	rep := &VerifyReport{}
	var evidence []byte

	err := e.store.UpdateRaw(ctx, store.Balances, func(current []byte) ([]byte, error) {
		balances, err := account.BalancesResource.Decode(current)
		if err != nil {
			return nil, err
		}
		log, err := store.Read(ctx, e.store, account.LogResource)
		if err != nil {
			return nil, err
		}

		known := make([]string, 0, len(balances))
		for name := range balances {
			known = append(known, name)
		}
		expected := account.Replay(log, known)

		rep.Actual = balances.Total()
		rep.Expected = expected.Total()
		rep.Drift = account.Diff(balances, expected)

		if rep.Actual.GreaterThan(rep.Expected) {
			rep.Inflated = true
			evidence = current
			return nil, nil
		}
		if len(rep.Drift) == 0 {
			return nil, nil
		}
		if balances == nil {
			balances = make(account.Balances)
		}
		for _, d := range rep.Drift {
			balances[d.Account] = d.Expected
		}
		rep.Healed = true
		return account.BalancesResource.Encode(balances)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case rep.Inflated:
		return rep, e.contain(ctx, rep, evidence)
	case rep.Healed:
		e.plugins.EmitDriftCorrected(ctx, rep.Drift)
		e.logger.Warn("balance drift corrected",
			"accounts", len(rep.Drift),
			"actual_total", rep.Actual.String(),
			"expected_total", rep.Expected.String(),
		)
	default:
		e.logger.Debug("balances verified", "total", rep.Actual.String())
	}
	return rep, nil
}

// contain freezes the evidence of an inflation anomaly.
func (e *Engine) contain(ctx context.Context, rep *VerifyReport, evidence []byte) error {
	e.frozen.Store(true)
	reason := fmt.Sprintf("stored supply %s exceeds replayed supply %s", rep.Actual, rep.Expected)

	var errs MultiError
	errs.Add(fmt.Errorf("%w: %s", ErrIntegrityAnomaly, reason))
	if m, err := e.backupManager(); err == nil {
		dir, ferr := m.Freeze(evidence, reason)
		rep.FrozenDir = dir
		errs.Add(ferr)
	} else if !errors.Is(err, ErrBackupDisabled) {
		errs.Add(err)
	}

	e.plugins.EmitAnomalyDetected(ctx, rep.Actual, rep.Expected, rep.FrozenDir)
	e.logger.Error("balance inflation detected",
		"actual_total", rep.Actual.String(),
		"expected_total", rep.Expected.String(),
		"accounts", len(rep.Drift),
		"frozen_dir", rep.FrozenDir,
	)
	return errs
}

// Backup snapshots every resource and rotates old snapshots.
func (e *Engine) Backup(ctx context.Context) (*backup.Manifest, error) {
	m, err := e.backupManager()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	man, err := m.Snapshot(ctx, e.store)
	if err != nil {
		return nil, err
	}
	if expired, err := m.Rotate(); err != nil {
		e.logger.Warn("backup rotation incomplete", "error", err)
	} else if len(expired) > 0 {
		e.logger.Debug("backups rotated", "removed", expired)
	}

	e.plugins.EmitBackupCompleted(ctx, man, time.Since(start))
	return man, nil
}

// Snapshots lists retained snapshot names, oldest first.
func (e *Engine) Snapshots() ([]string, error) {
	m, err := e.backupManager()
	if err != nil {
		return nil, err
	}
	return m.List()
}

// IntegrityTick verifies the balances, takes a snapshot and purges stale
// rate-limit history. Each step runs even when an earlier one fails.
func (e *Engine) IntegrityTick(ctx context.Context) error {
	var errs MultiError

	if _, err := e.Verify(ctx); err != nil {
		errs.Add(err)
	}
	if _, err := e.Backup(ctx); err != nil && !errors.Is(err, ErrBackupDisabled) {
		errs.Add(err)
	}
	if _, err := e.PurgeUsage(ctx, e.usageRetention); err != nil {
		errs.Add(err)
	}
	return errs.Err()
}
