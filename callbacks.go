package torrent

import "context"

// Request identifies a pipelined block request by its (piece index, byte
// offset within the piece, length) coordinates — spec.md's "Block".
type Request struct {
	Index, Begin, Length uint32
}

// ContentManager is the collaborator that owns piece storage, hashing, and file
// I/O (spec.md §1 Out of scope). The core only ever asks it for bytes and for
// the piece count of a torrent.
type ContentManager interface {
	// GetBytes returns the requested byte range of a piece, or an error if it
	// is not (yet) available. Corresponds to cm_get_bytes.
	GetBytes(ctx context.Context, torrent *Torrent, index, begin, length uint32) ([]byte, error)
	// GetNumPieces returns how many pieces of torrent we ourselves have
	// already completed — not the torrent's total piece count, which is
	// Torrent.TotalPieces. Corresponds to cm_get_npieces, whose only caller
	// (peer_on_shake) uses it to decide whether, and how, to announce our
	// pieces to a freshly attached peer.
	GetNumPieces(torrent *Torrent) int
	// Bitfield returns our own completed-pieces bitfield for torrent, MSB-first
	// per bit per spec.md §6's BITFIELD encoding, ⌈TotalPieces/8⌉ bytes long.
	// onShake reads this to build either a BITFIELD/BITDATA pair or a run of
	// HAVE messages, the same source the original's nb_create_bitfield and
	// nb_create_multihave both draw from.
	Bitfield(torrent *Torrent) []byte
}

// TorrentLookup resolves an incoming peer's info_hash to the Torrent it names,
// once the handshake arrives. An outbound peer already knows its Torrent
// before dialing (spec.md §3 Lifecycle); an inbound one only learns it from
// the wire, so onShake needs this to attach it. Out of scope: torrent
// registration/removal itself, which belongs to the surrounding client.
type TorrentLookup interface {
	LookupTorrent(infoHash [20]byte) *Torrent
}

// UploadScheduler owns choking policy and upload accounting (spec.md §1). The
// core notifies it of peer lifecycle and interest-state transitions; it does
// not call back into the core except through Peer's exported commands
// (Choke/Unchoke).
type UploadScheduler interface {
	OnNewPeer(p *Peer)
	OnLostPeer(p *Peer)
	OnInterest(p *Peer)
	OnUninterest(p *Peer)
}

// DownloadScheduler owns piece picking and block completion (spec.md §1).
type DownloadScheduler interface {
	OnNewPeer(p *Peer)
	OnLostPeer(p *Peer)
	OnChoke(p *Peer)
	OnUnchoke(p *Peer)
	OnPieceAnnounced(p *Peer, index uint32)
	OnBlock(p *Peer, req Request, data []byte)
}

// NoopUploadScheduler and NoopDownloadScheduler are convenience
// zero-dependency implementations for tests and for callers that want to wire
// the core up incrementally.
type NoopUploadScheduler struct{}

func (NoopUploadScheduler) OnNewPeer(*Peer)    {}
func (NoopUploadScheduler) OnLostPeer(*Peer)   {}
func (NoopUploadScheduler) OnInterest(*Peer)   {}
func (NoopUploadScheduler) OnUninterest(*Peer) {}

type NoopDownloadScheduler struct{}

func (NoopDownloadScheduler) OnNewPeer(*Peer)                         {}
func (NoopDownloadScheduler) OnLostPeer(*Peer)                        {}
func (NoopDownloadScheduler) OnChoke(*Peer)                           {}
func (NoopDownloadScheduler) OnUnchoke(*Peer)                         {}
func (NoopDownloadScheduler) OnPieceAnnounced(*Peer, uint32)          {}
func (NoopDownloadScheduler) OnBlock(*Peer, Request, []byte)          {}

var (
	_ UploadScheduler   = NoopUploadScheduler{}
	_ DownloadScheduler = NoopDownloadScheduler{}
)
