package torrent

import "github.com/pkg/errors"

// KillReason classifies why a peer was killed, for logging and for tests that
// assert on the termination path (spec.md §7).
type KillReason int

const (
	KillIOError KillReason = iota
	KillProtocolViolation
	KillTimeout
	KillAdministrative
)

func (r KillReason) String() string {
	switch r {
	case KillIOError:
		return "io_error"
	case KillProtocolViolation:
		return "protocol_violation"
	case KillTimeout:
		return "timeout"
	case KillAdministrative:
		return "administrative"
	default:
		return "unknown"
	}
}

// errBitfieldAfterAnnounce is returned by onBitfield when the peer has already
// announced pieces via HAVE. The original C asserts npieces==0 here and aborts
// the whole process; spec.md §9 flags that as a design mistake the original
// author would not repeat in a networked context that must survive a
// misbehaving remote — this is a protocol violation that kills only the one
// peer, not the process.
var errBitfieldAfterAnnounce = errors.New("bitfield received after prior have/bitfield")

// errShortCompactAddr is returned by DialCompact when given fewer than the 6
// bytes (4 IP + 2 port) a compact peer address requires (spec.md §9, resolving
// the peer_create_out_compact open question).
var errShortCompactAddr = errors.New("compact peer address shorter than 6 bytes")

// errShakeInfoHashMismatch is returned by onShake when an outbound peer's
// handshake names a different info_hash than the Torrent we dialed it for.
var errShakeInfoHashMismatch = errors.New("handshake info_hash does not match dialed torrent")

// errUnknownTorrent is returned by onShake when an inbound peer's info_hash
// does not resolve to any Torrent we have (no Lookup configured, or Lookup
// found nothing).
var errUnknownTorrent = errors.New("handshake names an unknown torrent")
