package trie

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is matched by every *InvalidKeyError through errors.Is.
var ErrInvalidKey = errors.New("invalid composite key")

const noIdentityReason = "composite keys must contain at least one non-scalar component"

// InvalidKeyError reports a tuple that cannot be interned.
// Position is -1 when the tuple as a whole is at fault.
type InvalidKeyError struct {
	Position int
	Type     string
	Reason   string
}

func (e *InvalidKeyError) Error() string {
	if e.Position < 0 {
		return e.Reason
	}
	return fmt.Sprintf("composite key component %d (%s): %s", e.Position, e.Type, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidKey) hold for any InvalidKeyError.
func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func errNoIdentity() error {
	return &InvalidKeyError{Position: -1, Reason: noIdentityReason}
}
