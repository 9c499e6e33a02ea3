package grants

import "errors"

// ErrDuplicateGrant is returned when a grants file lists the same
// (owner, token) pair twice.
var ErrDuplicateGrant = errors.New("duplicate grant")
