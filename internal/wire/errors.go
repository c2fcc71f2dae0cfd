package wire

import "errors"

var (
	// ErrBadNodeIDLength is returned when decoding a NodeId whose hex text
	// does not decode to exactly NodeIDSize bytes.
	ErrBadNodeIDLength = errors.New("node id must decode to 32 bytes")

	// ErrTruncated is returned when a buffer being decoded is shorter than
	// the canonical encoding requires.
	ErrTruncated = errors.New("truncated message")

	// ErrOversize is returned when a buffer being decoded is longer than
	// the canonical encoding.
	ErrOversize = errors.New("message exceeds maximum size")

	// ErrBadSignature is returned by identity.Verify when the signature
	// does not cover the encoded payload under the claimed originator. An
	// originator that is not a valid Ed25519 point also fails this way.
	ErrBadSignature = errors.New("invalid signature")

	// ErrBadOriginator is returned by identity.Verify when the originator
	// is not an Ed25519 public key's length. A NodeId is always NodeIDSize
	// bytes, so this check does not fail for a decoded message.
	ErrBadOriginator = errors.New("invalid originator public key")
)
