package wire

import (
	"encoding/binary"
	"math"
)

// payloadSize is the canonical encoded length of a GossipPayload:
// 8 bytes timestamp_ms + 8 bytes value (IEEE-754 f64) + 4 bytes community_id.
const payloadSize = 8 + 8 + 4

// SignedMessageSize is the canonical encoded length of a SignedMessage:
// 32 bytes originator + 64 bytes signature + payloadSize bytes message.
// The encoding has no framing or schema tags, so this fixed size is also
// exactly the number of bytes one stream carries per spec's wire protocol.
const SignedMessageSize = NodeIDSize + SignatureSize + payloadSize

// EncodePayload produces the canonical byte string covered by a signature:
// fields in declared order, fixed-width little-endian integers (8-byte
// timestamp_ms, 4-byte community_id), f64 as 8 little-endian bytes. This is the exact codec used both for signing and
// for re-deriving the signed bytes during verification.
func EncodePayload(p GossipPayload) []byte {
	buf := make([]byte, payloadSize)
	binary.LittleEndian.PutUint64(buf[0:8], p.Telemetry.TimestampMs)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Telemetry.Value))
	binary.LittleEndian.PutUint32(buf[16:20], p.CommunityID)
	return buf
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(buf []byte) (GossipPayload, error) {
	if len(buf) > payloadSize {
		return GossipPayload{}, ErrOversize
	}
	if len(buf) < payloadSize {
		return GossipPayload{}, ErrTruncated
	}
	return GossipPayload{
		Telemetry: TelemetryData{
			TimestampMs: binary.LittleEndian.Uint64(buf[0:8]),
			Value:       math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		},
		CommunityID: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

// EncodeSignedMessage produces the exact byte string a transport stream
// carries: fixed-length originator, fixed-length signature, then the
// canonical payload encoding. Because every field is fixed-width, this
// doubles as the wire framing — no length prefix is needed.
func EncodeSignedMessage(m SignedMessage) []byte {
	buf := make([]byte, SignedMessageSize)
	copy(buf[0:NodeIDSize], m.Originator[:])
	copy(buf[NodeIDSize:NodeIDSize+SignatureSize], m.Signature[:])
	copy(buf[NodeIDSize+SignatureSize:], EncodePayload(m.Message))
	return buf
}

// DecodeSignedMessage is the inverse of EncodeSignedMessage.
func DecodeSignedMessage(buf []byte) (SignedMessage, error) {
	if len(buf) > SignedMessageSize {
		return SignedMessage{}, ErrOversize
	}
	if len(buf) < SignedMessageSize {
		return SignedMessage{}, ErrTruncated
	}
	var m SignedMessage
	copy(m.Originator[:], buf[0:NodeIDSize])
	copy(m.Signature[:], buf[NodeIDSize:NodeIDSize+SignatureSize])
	payload, err := DecodePayload(buf[NodeIDSize+SignatureSize:])
	if err != nil {
		return SignedMessage{}, err
	}
	m.Message = payload
	return m, nil
}
