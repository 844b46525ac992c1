package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/types"
)

func TestMetricsExtensionCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := NewPrometheusFactory(reg)
	m := NewMetricsExtension(f)
	ctx := context.Background()

	for _, tx := range []account.Transaction{
		account.NewTransaction(time.Now(), "alice", "bob", types.New(10)),
		account.NewTransaction(time.Now(), account.Mint, account.Treasury, types.New(50)),
		account.NewTransaction(time.Now(), account.Treasury, account.Burn, types.New(5)),
	} {
		_ = m.OnTransfer(ctx, &tx)
	}
	_ = m.OnElectionFinalized(ctx, &governance.Outcome{Changed: true})
	_ = m.OnElectionFinalized(ctx, &governance.Outcome{})

	tests := []struct {
		name string
		c    Counter
		want float64
	}{
		{"transfers", m.Transfers, 1},
		{"minted", m.Minted, 50},
		{"burned", m.Burned, 5},
		{"elections", m.ElectionFinalized, 2},
		{"holder changed", m.HolderChanged, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ToFloat64(tt.c.(prometheus.Counter))
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheusFactory(reg).Counter("bits.ledger.transfers")
	b := NewPrometheusFactory(reg).Counter("bits.ledger.transfers")
	a.Inc()
	b.Inc()

	if got := testutil.ToFloat64(a.(prometheus.Counter)); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
	if n, err := testutil.GatherAndCount(reg, "bits_ledger_transfers_total"); err != nil || n != 1 {
		t.Errorf("gathered %d series, err %v", n, err)
	}
}
