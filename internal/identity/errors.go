package identity

import "errors"

// ErrInvalidKeyFile is returned by LoadOrCreate when an existing key file
// does not hold exactly one raw Ed25519 seed.
var ErrInvalidKeyFile = errors.New("invalid identity key file")
