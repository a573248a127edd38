package peer_protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// EventKind identifies the kind of decoded inbound event.
type EventKind int

const (
	EventShake EventKind = iota
	EventKeepalive
	EventChoke
	EventUnchoke
	EventInterested
	EventNotInterested
	EventHave
	EventBitfield
	EventRequest
	EventPiece
	EventCancel
)

// Event is what the Decoder hands the peer state machine once a complete
// message has been read off the wire.
type Event struct {
	Kind EventKind

	InfoHash [20]byte
	PeerID   [20]byte

	Index, Begin, Length uint32
	Bitfield             []byte
	Data                 []byte
}

// ProtocolError marks a fatal, connection-killing decode failure: bad length,
// unknown id, or a payload/length mismatch (spec.md §7.1). It is always fatal —
// there is no partial-failure recovery inside the decoder.
type ProtocolError struct {
	cause error
}

func (e *ProtocolError) Error() string { return e.cause.Error() }
func (e *ProtocolError) Unwrap() error { return e.cause }

func protoErrf(format string, args ...any) error {
	return &ProtocolError{cause: errors.Errorf(format, args...)}
}

type decodeState int

const (
	stateShakePstr decodeState = iota
	stateShakeInfoHash
	stateShakeID
	stateMsgLen
	stateMsgID
	statePayloadFixed
	statePayloadBitfield
	statePayloadPieceHeader
	statePayloadPieceData
)

// Decoder is the byte-at-a-time (state, bytes-needed) machine from spec.md §4.3.
// It is fed arbitrarily-sized chunks as they arrive off the socket (the "byte at
// a time" framing is the logical model, not a constraint on call granularity —
// partial reads resume exactly where they left off, driven by the same
// (state, needed) pair regardless of how the bytes were chunked).
type Decoder struct {
	state  decodeState
	needed int
	acc    []byte

	npieces     int
	npiecesKnow bool

	// maxBitfieldBytes and maxBlockLength bound the payload sizes this
	// decoder will accept before allocating for them (Config.MaxBitfieldBytes/
	// MaxBlockLength). Zero means unbounded, the zero-value Decoder's default,
	// so decoders built without SetLimits (e.g. in tests) stay permissive.
	maxBitfieldBytes int
	maxBlockLength   int

	msgLen uint32
	msgID  byte

	pIndex, pBegin, pLength uint32

	pending []byte
}

// shakePstrLen is the handshake's pstrlen + protocol string + reserved bytes:
// the first thing read off any new connection, before info_hash or peer id.
const shakePstrLen = 1 + len(ProtocolString) + 8

// NewDecoder returns a Decoder in its initial state: expecting the 28-byte
// handshake prefix (pstrlen + protocol string + 8 reserved bytes).
func NewDecoder() *Decoder {
	return &Decoder{state: stateShakePstr, needed: shakePstrLen}
}

// SetNumPieces tells the decoder how many pieces the attached torrent has, which
// determines the expected BITFIELD payload length (⌈npieces/8⌉ bytes). Must be
// called once, after the handshake's info_hash resolves the torrent and before
// any BITFIELD can legally arrive.
func (d *Decoder) SetNumPieces(n int) {
	d.npieces = n
	d.npiecesKnow = true
}

// SetLimits bounds the BITFIELD and PIECE/REQUEST/CANCEL payload sizes this
// decoder will accept, rejecting anything over them as a ProtocolError before
// allocating for the payload (spec.md §4.3 EXPANDED's gap this core, unlike
// the original trusted-daemon client, must close: it is exposed directly to
// untrusted remote peers). Zero disables the corresponding check.
func (d *Decoder) SetLimits(maxBitfieldBytes, maxBlockLength int) {
	d.maxBitfieldBytes = maxBitfieldBytes
	d.maxBlockLength = maxBlockLength
}

func bitfieldLen(npieces int) int {
	return (npieces + 7) / 8
}

// Feed appends newly-read bytes and returns every Event completed as a result.
// On a ProtocolError the peer must be killed; the Decoder is not safe to Feed
// again afterwards.
func (d *Decoder) Feed(data []byte) ([]Event, error) {
	d.pending = append(d.pending, data...)
	var events []Event
	for {
		if len(d.pending) < d.needed {
			return events, nil
		}
		chunk := d.pending[:d.needed]
		d.pending = d.pending[d.needed:]
		ev, err := d.advance(chunk)
		if err != nil {
			return events, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
}

func (d *Decoder) advance(chunk []byte) (*Event, error) {
	switch d.state {
	case stateShakePstr:
		if chunk[0] != byte(len(ProtocolString)) {
			return nil, protoErrf("bad pstrlen %d", chunk[0])
		}
		if string(chunk[1:1+len(ProtocolString)]) != ProtocolString {
			return nil, protoErrf("bad protocol string %q", chunk[1:1+len(ProtocolString)])
		}
		// Reserved bytes (chunk[20:28]) are not validated: unknown bits are
		// ignored per BEP 3, this core implements no extension that sets them.
		d.state = stateShakeInfoHash
		d.needed = 20
		return nil, nil
	case stateShakeInfoHash:
		var ih [20]byte
		copy(ih[:], chunk)
		d.acc = ih[:]
		d.state = stateShakeID
		d.needed = 20
		return nil, nil
	case stateShakeID:
		var infoHash, id [20]byte
		copy(infoHash[:], d.acc)
		copy(id[:], chunk)
		d.acc = nil
		d.state = stateMsgLen
		d.needed = 4
		return &Event{Kind: EventShake, InfoHash: infoHash, PeerID: id}, nil
	case stateMsgLen:
		d.msgLen = be32ToUint(chunk)
		if d.msgLen == 0 {
			d.state = stateMsgLen
			d.needed = 4
			return &Event{Kind: EventKeepalive}, nil
		}
		d.state = stateMsgID
		d.needed = 1
		return nil, nil
	case stateMsgID:
		d.msgID = chunk[0]
		return d.startPayload()
	case statePayloadFixed:
		return d.finishFixed(chunk)
	case statePayloadBitfield:
		d.state = stateMsgLen
		d.needed = 4
		bits := make([]byte, len(chunk))
		copy(bits, chunk)
		return &Event{Kind: EventBitfield, Bitfield: bits}, nil
	case statePayloadPieceHeader:
		d.pIndex = be32ToUint(chunk[0:4])
		d.pBegin = be32ToUint(chunk[4:8])
		d.pLength = d.msgLen - 9
		if d.pLength == 0 {
			d.state = stateMsgLen
			d.needed = 4
			return &Event{Kind: EventPiece, Index: d.pIndex, Begin: d.pBegin, Length: 0}, nil
		}
		d.state = statePayloadPieceData
		d.needed = int(d.pLength)
		return nil, nil
	case statePayloadPieceData:
		data := make([]byte, len(chunk))
		copy(data, chunk)
		d.state = stateMsgLen
		d.needed = 4
		return &Event{Kind: EventPiece, Index: d.pIndex, Begin: d.pBegin, Length: d.pLength, Data: data}, nil
	default:
		return nil, protoErrf("decoder in unknown state %d", d.state)
	}
}

// startPayload dispatches on the just-read message id, per spec.md §4.3: each id
// determines the next state and the payload length it implies, which must agree
// with msgLen or the message is malformed.
func (d *Decoder) startPayload() (*Event, error) {
	switch d.msgID {
	case IDChoke, IDUnchoke, IDInterested, IDNotInterested:
		if d.msgLen != 1 {
			return nil, protoErrf("message id %d expects length 1, got %d", d.msgID, d.msgLen)
		}
		d.state = stateMsgLen
		d.needed = 4
		return d.fixedEvent(), nil
	case IDHave:
		if d.msgLen != 5 {
			return nil, protoErrf("have expects length 5, got %d", d.msgLen)
		}
		d.state = statePayloadFixed
		d.needed = 4
		return nil, nil
	case IDBitfield:
		if !d.npiecesKnow {
			return nil, protoErrf("bitfield received before torrent attached")
		}
		fieldLen := bitfieldLen(d.npieces)
		if d.maxBitfieldBytes > 0 && fieldLen > d.maxBitfieldBytes {
			return nil, protoErrf("bitfield length %d exceeds configured maximum %d", fieldLen, d.maxBitfieldBytes)
		}
		want := 1 + fieldLen
		if int(d.msgLen) != want {
			return nil, protoErrf("bitfield expects length %d, got %d", want, d.msgLen)
		}
		d.state = statePayloadBitfield
		d.needed = fieldLen
		return nil, nil
	case IDRequest, IDCancel:
		if d.msgLen != 13 {
			return nil, protoErrf("request/cancel expects length 13, got %d", d.msgLen)
		}
		d.state = statePayloadFixed
		d.needed = 12
		return nil, nil
	case IDPiece:
		if d.msgLen < 9 {
			return nil, protoErrf("piece expects length >= 9, got %d", d.msgLen)
		}
		if pLength := d.msgLen - 9; d.maxBlockLength > 0 && pLength > uint32(d.maxBlockLength) {
			return nil, protoErrf("piece payload length %d exceeds configured maximum %d", pLength, d.maxBlockLength)
		}
		d.state = statePayloadPieceHeader
		d.needed = 8
		return nil, nil
	default:
		return nil, protoErrf("unknown message id %d", d.msgID)
	}
}

func (d *Decoder) fixedEvent() *Event {
	switch d.msgID {
	case IDChoke:
		return &Event{Kind: EventChoke}
	case IDUnchoke:
		return &Event{Kind: EventUnchoke}
	case IDInterested:
		return &Event{Kind: EventInterested}
	case IDNotInterested:
		return &Event{Kind: EventNotInterested}
	}
	panic(fmt.Sprintf("fixedEvent: unexpected id %d", d.msgID))
}

// finishFixed handles the fixed-length payloads collected under
// statePayloadFixed: HAVE's index, or REQUEST/CANCEL's (index, begin, length).
func (d *Decoder) finishFixed(chunk []byte) (*Event, error) {
	d.state = stateMsgLen
	d.needed = 4
	switch d.msgID {
	case IDHave:
		return &Event{Kind: EventHave, Index: be32ToUint(chunk)}, nil
	case IDRequest:
		length := be32ToUint(chunk[8:12])
		if d.maxBlockLength > 0 && length > uint32(d.maxBlockLength) {
			return nil, protoErrf("request length %d exceeds configured maximum %d", length, d.maxBlockLength)
		}
		return &Event{
			Kind:   EventRequest,
			Index:  be32ToUint(chunk[0:4]),
			Begin:  be32ToUint(chunk[4:8]),
			Length: length,
		}, nil
	case IDCancel:
		length := be32ToUint(chunk[8:12])
		if d.maxBlockLength > 0 && length > uint32(d.maxBlockLength) {
			return nil, protoErrf("cancel length %d exceeds configured maximum %d", length, d.maxBlockLength)
		}
		return &Event{
			Kind:   EventCancel,
			Index:  be32ToUint(chunk[0:4]),
			Begin:  be32ToUint(chunk[4:8]),
			Length: length,
		}, nil
	}
	panic(fmt.Sprintf("finishFixed: unexpected id %d", d.msgID))
}

func be32ToUint(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
