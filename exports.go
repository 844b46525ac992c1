package bits

import "github.com/xraph/bits/types"

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Bits

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export amount constructors
var (
	NewAmount   = types.New
	ParseAmount = types.Parse
	Zero        = types.Zero
	Sum         = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
