// Package bits provides a community virtual-currency ledger for Go applications.
//
// Bits is designed as a library with a thin daemon (cmd/bitsd) on top. It
// provides:
//
//   - Account balances with an append-only transaction log
//   - Pooled company accounts operated by a member set
//   - Recurring peer-to-peer subscriptions charged by a background job
//   - Term-based elections for the president, who controls the treasury
//   - Sliding-window rate limits guarding a natural-language translator
//   - Integrity verification that self-heals drift and freezes evidence of
//     inflation, plus rotating snapshots
//   - Per-user notification mailboxes
//
// # Quick Start
//
// Create an engine over any store backend:
//
//	import (
//	    "github.com/xraph/bits"
//	    "github.com/xraph/bits/store/file"
//	)
//
//	s, err := file.New("/var/lib/bits/data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	e := bits.New(s, bits.WithBackupDir("/var/lib/bits/backups"))
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop(ctx)
//
// # Core Concepts
//
// Every account is created lazily at 100 bits the first time it is read.
// Balances only change through a validated movement paired with a
// transaction:
//
//	rec, err := e.Transfer(ctx, "alice", "bob", bits.NewAmount(10))
//
// Commands from a chat transport are dispatched as text and answered with
// a human-readable reply:
//
//	reply := e.Dispatch(ctx, "alice", "!s bob 10")
//
// The treasury account "officialtreasury" is operated by the current
// president through Mint, Burn and Spend. The president is elected once per
// term:
//
//	err := e.Vote(ctx, "bob", "alice")
//
// # Storage
//
// State is kept as named JSON resources behind store.Store. Every
// read-modify-write runs under the resource lock through store.Update, and
// operations spanning several resources take locks in a fixed order:
// subscriptions, companies, governance, balances, transactions, rate-limit
// global, rate-limit users, notifications, preferences, processed.
//
// # Plugins
//
// Lifecycle and domain events are delivered through plugin.Registry. The
// audit_hook package turns them into audit records and the observability
// package into metrics.
package bits
