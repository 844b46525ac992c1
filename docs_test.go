package bits_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/bits"
	"github.com/xraph/bits/store/memory"
	"github.com/xraph/bits/subscription"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation keep working.
func TestDocumentationExamples(t *testing.T) {
	// Quick start from the package doc
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use the file store in production)
		s := memory.New()

		e := bits.New(s,
			bits.WithLogger(slog.New(slog.DiscardHandler)),
			bits.WithBackupDir(t.TempDir()),
			bits.WithSchedule(time.Minute, time.Hour, 10*time.Minute),
		)

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop(ctx) //nolint:errcheck // test cleanup

		// Every account opens with 100 bits on first read
		if _, err := e.Transfer(ctx, "alice", "bob", bits.NewAmount(25)); err != nil {
			t.Fatal(err)
		}

		// Weekly subscription, first cycle charged immediately
		if _, _, err := e.Subscribe(ctx, "alice", "bob", bits.NewAmount(5), subscription.CycleWeekly); err != nil {
			t.Fatal(err)
		}

		// Comment commands go through Dispatch
		log.Println(e.Dispatch(ctx, "bob", "found 50"))
		log.Println(e.Dispatch(ctx, "bob", "leaderboard"))

		// Verify replays the log; drift is healed, inflation frozen
		rep, err := e.Verify(ctx)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("supply %s, drift %d\n", rep.Actual, len(rep.Drift))

		if _, err := e.Backup(ctx); err != nil {
			t.Fatal(err)
		}
	})

	// Amount examples
	t.Run("AmountExamples", func(t *testing.T) {
		a := bits.NewAmount(12.34) // 12.3
		b, err := bits.ParseAmount("0.75")
		if err != nil {
			t.Fatal(err)
		}
		if got := a.Add(b).String(); got != "13.1" {
			t.Errorf("12.3 + 0.8 = %s", got)
		}
		if !bits.Sum().Equal(bits.Zero) {
			t.Error("empty sum is not zero")
		}
	})
}
