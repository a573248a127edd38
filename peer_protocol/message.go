package peer_protocol

import (
	"encoding/binary"
)

// NetBuf is an immutable, reference-counted wire message. The same NetBuf may be
// held by more than one peer's outQueue at once — a block's PIECE/TORRENTDATA
// pair can be queued to several leechers without copying the underlying bytes —
// so lifetime is managed by Hold/Drop rather than a single owner.
//
// fields holds the tag-specific semantic values so callers can match a queued
// NetBuf against a (index, begin, length) triple for cancellation, without having
// to re-parse the wire bytes.
type NetBuf struct {
	Tag   Tag
	Bytes []byte

	Index  uint32
	Begin  uint32
	Length uint32

	rc refCount
}

// Hold increments the reference count. The caller that creates a NetBuf owns the
// initial reference; every additional enqueue onto an outQueue must Hold first.
func (nb *NetBuf) Hold() {
	nb.rc.hold()
}

// Drop decrements the reference count. The NetBuf becomes unusable once the
// count reaches zero; there is nothing further to free on the Go side (no manual
// memory management), but callers must stop referencing it so a Drop pairs with
// every Hold exactly as the C original's nb_hold/nb_drop did.
func (nb *NetBuf) Drop() {
	nb.rc.drop()
}

// RefCount reports the current hold count. Exposed for tests validating that
// unsend/drain pair every Hold with a Drop.
func (nb *NetBuf) RefCount() int64 {
	return nb.rc.get()
}

// Matches reports whether this NetBuf is the REQUEST, CANCEL or PIECE header for
// the given block coordinates — used when scanning an outQueue to cancel a
// specific pending request or piece reply.
func (nb *NetBuf) Matches(index, begin, length uint32) bool {
	switch nb.Tag {
	case Request, Cancel, PieceHeader:
		return nb.Index == index && nb.Begin == begin && nb.Length == length
	default:
		return false
	}
}

func newRefCounted(tag Tag, bytes []byte) *NetBuf {
	nb := &NetBuf{Tag: tag, Bytes: bytes}
	nb.rc.hold()
	return nb
}

func lenPrefixed(id byte, payload ...[]byte) []byte {
	n := 1
	for _, p := range payload {
		n += len(p)
	}
	buf := make([]byte, 4+n)
	binary.BigEndian.PutUint32(buf[0:4], uint32(n))
	buf[4] = id
	off := 5
	for _, p := range payload {
		off += copy(buf[off:], p)
	}
	return buf
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// NewShake builds the 68-byte handshake: pstrlen, protocol string, 8 reserved
// bytes, 20-byte info_hash, 20-byte peer id.
func NewShake(infoHash, peerID [20]byte) *NetBuf {
	buf := make([]byte, 0, HandshakeLen)
	buf = append(buf, byte(len(ProtocolString)))
	buf = append(buf, ProtocolString...)
	buf = append(buf, ReservedBytes[:]...)
	buf = append(buf, infoHash[:]...)
	buf = append(buf, peerID[:]...)
	return newRefCounted(Shake, buf)
}

// NewKeepalive builds the zero-length keepalive message.
func NewKeepalive() *NetBuf {
	return newRefCounted(Keepalive, be32(0))
}

func simpleMessage(tag Tag, id byte) *NetBuf {
	return newRefCounted(tag, lenPrefixed(id))
}

func NewChoke() *NetBuf         { return simpleMessage(Choke, IDChoke) }
func NewUnchoke() *NetBuf       { return simpleMessage(Unchoke, IDUnchoke) }
func NewInterested() *NetBuf    { return simpleMessage(Interested, IDInterested) }
func NewNotInterested() *NetBuf { return simpleMessage(NotInterested, IDNotInterested) }

// NewHave builds a single HAVE(index) message.
func NewHave(index uint32) *NetBuf {
	nb := newRefCounted(Have, lenPrefixed(IDHave, be32(index)))
	nb.Index = index
	return nb
}

// NewBitfieldHeader builds the BITFIELD message header (id + length prefix) for
// a field of fieldLen bytes. The field bytes themselves are a separate NetBuf
// (NewBitData) so the caller can send a shared/immutable buffer without copying.
func NewBitfieldHeader(fieldLen int) *NetBuf {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[0:4], uint32(1+fieldLen))
	buf[4] = IDBitfield
	return newRefCounted(Bitfield, buf)
}

// NewBitData wraps the raw, MSB-first bitfield bytes that follow a
// NewBitfieldHeader on the wire.
func NewBitData(field []byte) *NetBuf {
	cp := make([]byte, len(field))
	copy(cp, field)
	return newRefCounted(BitData, cp)
}

// NewMultiHave is the sparse alternative to BITFIELD+BITDATA: a run of ordinary
// HAVE messages, one per set bit, concatenated into a single NetBuf. It is not a
// wire extension, just an encoding choice made at handshake time (spec.md §6).
func NewMultiHave(setBits []uint32) *NetBuf {
	var buf []byte
	for _, i := range setBits {
		buf = append(buf, lenPrefixed(IDHave, be32(i))...)
	}
	return newRefCounted(MultiHave, buf)
}

// NewRequest builds a REQUEST(index, begin, length) message.
func NewRequest(index, begin, length uint32) *NetBuf {
	nb := newRefCounted(Request, lenPrefixed(IDRequest, be32(index), be32(begin), be32(length)))
	nb.Index, nb.Begin, nb.Length = index, begin, length
	return nb
}

// NewCancel builds a CANCEL(index, begin, length) message, wire-identical to
// REQUEST apart from the message id.
func NewCancel(index, begin, length uint32) *NetBuf {
	nb := newRefCounted(Cancel, lenPrefixed(IDCancel, be32(index), be32(begin), be32(length)))
	nb.Index, nb.Begin, nb.Length = index, begin, length
	return nb
}

// NewPieceHeader builds the PIECE message header: length prefix covering the
// upcoming data too (9+length), the id, and (index, begin). The data bytes are a
// separate NetBuf (NewTorrentData) written immediately after on the wire, which
// is what lets a speculative send be cancelled by dropping two queue entries
// instead of copying the block into the header buffer.
func NewPieceHeader(index, begin, length uint32) *NetBuf {
	buf := make([]byte, 0, 13)
	buf = append(buf, be32(9+length)...)
	buf = append(buf, IDPiece)
	buf = append(buf, be32(index)...)
	buf = append(buf, be32(begin)...)
	nb := newRefCounted(PieceHeader, buf)
	nb.Index, nb.Begin, nb.Length = index, begin, length
	return nb
}

// NewTorrentData wraps raw block bytes with no header of its own; it only makes
// sense immediately following a NewPieceHeader on the wire.
func NewTorrentData(data []byte) *NetBuf {
	return newRefCounted(TorrentData, data)
}
