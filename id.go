package membership

import "github.com/xraph/membership/id"

// ID is the primary identifier type for all membership entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
