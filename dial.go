package torrent

import (
	"context"
	"encoding/binary"
	"net"
	"strconv"
)

// Dialer is the collaborator that opens outbound connections (net_connect /
// net_connect2, spec.md §6). Socket setup beyond dialing — listening, the
// network event loop, the bandwidth scheduler — is out of scope (spec.md §1)
// and lives in the surrounding client.
type Dialer interface {
	Dial(ctx context.Context, ip net.IP, port int) (net.Conn, error)
}

// tcpDialer is the default Dialer. Non-goals exclude uTP and MSE (spec.md §1),
// so plain TCP is the only transport this core dials itself, unlike the
// teacher's socket.go which also juggles uTP and WebRTC sockets.
type tcpDialer struct {
	net.Dialer
}

// DefaultDialer mirrors the teacher's dialer.go DefaultNetDialer: BitTorrent
// peers manage their own keepalives at the application layer (spec.md §5's
// WRITE_TIMEOUT), so TCP keepalive is disabled, and fallback is disabled since
// the network family is already decided by the caller.
var DefaultDialer Dialer = tcpDialer{
	Dialer: net.Dialer{
		KeepAlive:     -1,
		FallbackDelay: -1,
	},
}

// Dial implements net_connect(ip, port) -> sd.
func (d tcpDialer) Dial(ctx context.Context, ip net.IP, port int) (net.Conn, error) {
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(port))
	return d.Dialer.DialContext(ctx, "tcp", addr)
}

// DialCompact implements net_connect2 for a compact peer address: 4 bytes of
// IPv4 followed by 2 bytes of port, both network byte order.
//
// spec.md §9 flags the original's peer_create_out_compact as reading these via
// type-punned pointer arithmetic, ignoring alignment and the source bytes'
// endianness. This reads the six bytes explicitly and rejects anything shorter,
// per that note's resolution.
func DialCompact(ctx context.Context, dialer Dialer, compact []byte) (net.Conn, error) {
	if len(compact) < 6 {
		return nil, errShortCompactAddr
	}
	ip := net.IPv4(compact[0], compact[1], compact[2], compact[3])
	port := int(binary.BigEndian.Uint16(compact[4:6]))
	return dialer.Dial(ctx, ip, port)
}
