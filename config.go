package torrent

import "time"

// Config holds the numeric knobs spec.md §6 requires the core to expose. There
// is deliberately no flag-parsing or file-loading layer here: CLI and the
// surrounding client's config system are out of scope (spec.md §1); the outer
// client is expected to populate a Config and hand it to a Peer/NetRegistry.
type Config struct {
	// MaxPipedRequests bounds how many outbound block requests may be in
	// flight to one peer at once (MAXPIPEDREQUESTS).
	MaxPipedRequests int
	// MaxPieceMsgs bounds how many outstanding PIECE/TORRENTDATA pairs may sit
	// in a peer's outq at once (MAXPIECEMSGS).
	MaxPieceMsgs int
	// WriteTimeout is the idle write timer value. Nothing in this package
	// reads it: outQueue's ArmWrite call carries no duration, and no code here
	// kills a peer when a write timer expires.
	WriteTimeout time.Duration

	// MaxBitfieldBytes and MaxBlockLength bound the payload sizes the decoder
	// will accept before allocating, supplementing the wire protocol described
	// in spec.md §6 for a core that (unlike the original C client) is exposed
	// directly to untrusted remote peers.
	MaxBitfieldBytes int
	MaxBlockLength   int
}

// DefaultConfig mirrors the original implementation's constants
// (original_source/btpd/peer.c: MAXPIPEDREQUESTS, MAXPIECEMSGS).
func DefaultConfig() Config {
	return Config{
		MaxPipedRequests: 10,
		MaxPieceMsgs:     8,
		WriteTimeout:     90 * time.Second,
		MaxBitfieldBytes: 1 << 20,  // 8M pieces worth of bitfield, generous
		MaxBlockLength:   1 << 17,  // 128KiB, well above the usual 16KiB block
	}
}
