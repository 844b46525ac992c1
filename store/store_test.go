package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bits/store"
	"github.com/xraph/bits/store/memory"
)

type counter struct {
	N int `json:"n"`
}

var counterRes = store.Define[counter]("counter", "counter", 1)

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"balances", true},
		{"ratelimit/global", true},
		{"notifications/alice_1-x", true},
		{"", false},
		{"notifications/", false},
		{"/balances", false},
		{"../etc/passwd", false},
		{"Balances", false},
		{"a b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.ValidName(tt.name); got != tt.want {
				t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLikePrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "%"},
		{"notifications/", "notifications/%"},
		{"ratelimit/user_", `ratelimit/user\_%`},
		{`100%\`, `100\%\\%`},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := store.LikePrefix(tt.prefix); got != tt.want {
				t.Errorf("LikePrefix(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestDecodeMissingIsZero(t *testing.T) {
	v, err := counterRes.Decode(nil)
	if err != nil {
		t.Fatalf("decode nil: %v", err)
	}
	if v.N != 0 {
		t.Errorf("expected zero value, got %+v", v)
	}
}

func TestEnvelope(t *testing.T) {
	raw, err := counterRes.Encode(counter{N: 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := counterRes.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.N != 7 {
		t.Errorf("got %d, want 7", got.N)
	}

	t.Run("legacy payload without envelope", func(t *testing.T) {
		got, err := counterRes.Decode([]byte(`{"n":3}`))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.N != 3 {
			t.Errorf("got %d, want 3", got.N)
		}
	})

	t.Run("newer version rejected", func(t *testing.T) {
		_, err := counterRes.Decode([]byte(`{"version":2,"kind":"counter","data":{"n":1}}`))
		if !errors.Is(err, store.ErrUnsupportedVersion) {
			t.Errorf("expected ErrUnsupportedVersion, got %v", err)
		}
	})

	t.Run("kind mismatch rejected", func(t *testing.T) {
		_, err := counterRes.Decode([]byte(`{"version":1,"kind":"other","data":{"n":1}}`))
		if err == nil {
			t.Error("expected kind mismatch error")
		}
	})
}

func TestReadUpdate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	v, err := store.Read(ctx, s, counterRes)
	if err != nil || v.N != 0 {
		t.Fatalf("read missing: %+v, %v", v, err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Update(ctx, s, counterRes, func(c *counter) error {
			c.N++
			return nil
		}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	v, err = store.Read(ctx, s, counterRes)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v.N != 3 {
		t.Errorf("got %d, want 3", v.N)
	}
}

func TestUpdateAbortLeavesResource(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_ = store.Update(ctx, s, counterRes, func(c *counter) error { c.N = 1; return nil })

	boom := errors.New("boom")
	err := store.Update(ctx, s, counterRes, func(c *counter) error {
		c.N = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	v, _ := store.Read(ctx, s, counterRes)
	if v.N != 1 {
		t.Errorf("aborted update leaked: got %d", v.N)
	}
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, s, counterRes, func(c *counter) error {
				c.N++
				return nil
			})
		}()
	}
	wg.Wait()

	v, _ := store.Read(ctx, s, counterRes)
	if v.N != 50 {
		t.Errorf("lost updates: got %d, want 50", v.N)
	}
}

func TestLockTimeout(t *testing.T) {
	ctx := context.Background()
	s := memory.New(memory.WithLockTimeout(20 * time.Millisecond))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.UpdateRaw(ctx, "counter", func([]byte) ([]byte, error) {
			close(held)
			<-release
			return nil, nil
		})
	}()
	<-held

	err := s.UpdateRaw(ctx, "counter", func([]byte) ([]byte, error) { return []byte("{}"), nil })
	close(release)
	if !errors.Is(err, store.ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got %v", err)
	}
}

func TestNestedUpdateOnOtherResource(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	other := counterRes.At("other")

	err := store.Update(ctx, s, counterRes, func(c *counter) error {
		c.N = 1
		return store.Update(ctx, s, other, func(o *counter) error {
			o.N = 2
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested update: %v", err)
	}

	a, _ := store.Read(ctx, s, counterRes)
	b, _ := store.Read(ctx, s, other)
	if a.N != 1 || b.N != 2 {
		t.Errorf("got %d/%d, want 1/2", a.N, b.N)
	}

	names, _ := s.Names(ctx, "")
	if len(names) != 2 || names[0] != "counter" || names[1] != "other" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	p := store.RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	t.Run("succeeds after transient failure", func(t *testing.T) {
		calls := 0
		v, err := store.Retry(ctx, p, func() (int, error) {
			calls++
			if calls < 2 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Fatalf("got %d, %v", v, err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("fatal after max tries", func(t *testing.T) {
		calls := 0
		_, err := store.Retry(ctx, p, func() (int, error) {
			calls++
			return 0, errors.New("disk gone")
		})
		if !errors.Is(err, store.ErrStoreFatal) {
			t.Errorf("expected ErrStoreFatal, got %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("permanent stops immediately", func(t *testing.T) {
		calls := 0
		bad := errors.New("bad input")
		_, err := store.Retry(ctx, p, func() (int, error) {
			calls++
			return 0, store.Permanent(bad)
		})
		if !errors.Is(err, bad) || errors.Is(err, store.ErrStoreFatal) {
			t.Errorf("expected permanent error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}
