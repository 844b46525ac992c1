package bits

import "github.com/xraph/bits/id"

// ID is the primary identifier type for all bits records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
