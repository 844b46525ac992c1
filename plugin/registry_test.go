package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/types"
)

type transferCounter struct {
	name  string
	calls atomic.Int32
	err   error
}

func (p *transferCounter) Name() string { return p.name }

func (p *transferCounter) OnTransfer(_ context.Context, _ *account.Transaction) error {
	p.calls.Add(1)
	return p.err
}

type slowShutdown struct{}

func (slowShutdown) Name() string { return "slow" }

func (slowShutdown) OnShutdown(ctx context.Context) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&transferCounter{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&transferCounter{name: "a"}); err == nil {
		t.Error("expected duplicate registration error")
	}
	if r.Count() != 1 || r.Get("a") == nil || r.Get("b") != nil {
		t.Errorf("registry state: count=%d", r.Count())
	}
}

func TestEmitContinuesAfterFailure(t *testing.T) {
	r := quietRegistry()
	failing := &transferCounter{name: "failing", err: errors.New("boom")}
	ok := &transferCounter{name: "ok"}
	_ = r.Register(failing)
	_ = r.Register(ok)

	tx := account.NewTransaction(time.Now(), "alice", "bob", types.New(1))
	r.EmitTransfer(context.Background(), &tx)

	if failing.calls.Load() != 1 || ok.calls.Load() != 1 {
		t.Errorf("calls: failing=%d ok=%d", failing.calls.Load(), ok.calls.Load())
	}
}

func TestHookTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(10 * time.Millisecond)
	_ = r.Register(slowShutdown{})

	start := time.Now()
	r.EmitShutdown(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("EmitShutdown blocked for %s", elapsed)
	}
}

func TestImplementedInterfaces(t *testing.T) {
	got := implementedInterfaces(&transferCounter{name: "x"})
	if len(got) != 1 || got[0] != "OnTransfer" {
		t.Errorf("interfaces = %v", got)
	}
}
