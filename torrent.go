package torrent

// Torrent is the minimal handle the peer core needs for the torrent a Peer is
// attached to. Metainfo parsing, piece hashing, and file layout are out of
// scope (spec.md §1); this just carries the identity and piece count a Peer
// needs to size its piece_field and pick a MULTIHAVE-vs-BITFIELD encoding.
type Torrent struct {
	InfoHash [20]byte

	// TotalPieces is the torrent's piece count from its metainfo
	// (meta.npieces in original_source/btpd/peer.c). Metainfo parsing itself
	// is out of scope; this is just the one field of it the core needs to
	// size piece_field and BITFIELD payloads.
	TotalPieces int
}

// NewTorrent wraps an info_hash and piece count for a Peer to attach to. How
// many of those pieces we've completed (cm_get_npieces in
// original_source/btpd/peer.c) is answered by the ContentManager already
// wired into the Peer (Deps.CM) — onShake asks it directly rather than this
// carrying a second, separately-wired reference to the same collaborator.
func NewTorrent(infoHash [20]byte, totalPieces int) *Torrent {
	return &Torrent{InfoHash: infoHash, TotalPieces: totalPieces}
}
