// Package peer_protocol implements the BitTorrent v1 peer wire protocol: the
// handshake, the length-prefixed message format, and the fixed set of message
// types a peer connection exchanges. It has no knowledge of torrents, pieces on
// disk, or choking policy — it only knows how to turn protocol events into bytes
// and bytes back into protocol events.
package peer_protocol

import "fmt"

// Tag identifies the kind of a NetBuf. Most tags correspond 1:1 to a wire message
// id; Shake, MultiHave and BitData are sender-side encoding choices rather than
// distinct wire messages (see NewMultiHave and NewBitData).
type Tag uint8

const (
	Shake Tag = iota
	Keepalive
	Choke
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	PieceHeader
	TorrentData
	Cancel
	MultiHave
	BitData
)

func (t Tag) String() string {
	switch t {
	case Shake:
		return "shake"
	case Keepalive:
		return "keepalive"
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case PieceHeader:
		return "piece_header"
	case TorrentData:
		return "torrent_data"
	case Cancel:
		return "cancel"
	case MultiHave:
		return "multihave"
	case BitData:
		return "bitdata"
	default:
		return fmt.Sprintf("Tag(%d)", t)
	}
}

// Message ids as they appear on the wire, per BEP 3.
const (
	IDChoke         = 0
	IDUnchoke       = 1
	IDInterested    = 2
	IDNotInterested = 3
	IDHave          = 4
	IDBitfield      = 5
	IDRequest       = 6
	IDPiece         = 7
	IDCancel        = 8
)

const (
	ProtocolString = "BitTorrent protocol"
	HandshakeLen   = 1 + len(ProtocolString) + 8 + 20 + 20
)

// ReservedBytes are the 8 handshake reserved bytes we advertise. All zero: none
// of fast-extension, DHT, or extension-protocol bits are set, per Non-goals.
var ReservedBytes [8]byte
