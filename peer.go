package torrent

import (
	"context"
	"net"

	"github.com/RoaringBitmap/roaring"
	"github.com/anacrolix/chansync"
	g "github.com/anacrolix/generics"
	"github.com/anacrolix/log"
	list "github.com/bahlo/generic-list-go"

	pp "github.com/dannyzb/peercore/peer_protocol"
)

// Peer is one live connection: spec.md §3's PeerState. All mutation happens
// from the event-loop goroutine that owns it (spec.md §5); NetRegistry is the
// only structure a Peer touches that is also touched concurrently from
// elsewhere.
type Peer struct {
	conn    net.Conn
	flags   peerFlags
	t       *Torrent
	peerID  g.Option[[20]byte]

	pieceField roaring.Bitmap
	npieces    int
	nwant      int

	myReqs   *list.List[*Block]
	nreqsOut int

	outq *outQueue
	in   *pp.Decoder

	registry *NetRegistry
	cfg      Config
	cm       ContentManager
	ul       UploadScheduler
	dl       DownloadScheduler
	lookup   TorrentLookup

	closed chansync.SetOnce

	unattachedElem *list.Element[*Peer]
	torrentElem    *list.Element[*Peer]
	readQElem      *list.Element[*Peer]
	writeQElem     *list.Element[*Peer]

	logger log.Logger
}

// Deps bundles the collaborators a Peer needs, so the three creation functions
// don't all take the same seven parameters individually.
type Deps struct {
	Registry *NetRegistry
	Config   Config
	CM       ContentManager
	UL       UploadScheduler
	DL       DownloadScheduler
	// Lookup resolves an incoming peer's info_hash to its Torrent. Unused for
	// outbound peers, which already carry their Torrent from DialOut(Compact).
	Lookup TorrentLookup
	Logger log.Logger
}

func newPeer(conn net.Conn, armer writeArmer, d Deps) *Peer {
	p := &Peer{
		conn:     conn,
		flags:    flagIChoke | flagPChoke,
		myReqs:   list.New[*Block](),
		in:       pp.NewDecoder(),
		registry: d.Registry,
		cfg:      d.Config,
		cm:       d.CM,
		ul:       d.UL,
		dl:       d.DL,
		lookup:   d.Lookup,
		logger:   d.Logger,
	}
	p.in.SetLimits(d.Config.MaxBitfieldBytes, d.Config.MaxBlockLength)
	p.outq = newOutQueue(armer)
	return p
}

// peerCreateCommon is the shared core of peer_create_in/_out/_out_compact: a
// peer always starts choking and uninterested in both directions, with its
// input state expecting the 28-byte handshake prefix, inserted into
// net_unattached (original_source/btpd/peer.c peer_create_common). No read
// event is armed here; inbound bytes reach the peer only when the caller
// passes them to HandleInbound.
func peerCreateCommon(conn net.Conn, armer writeArmer, d Deps) *Peer {
	p := newPeer(conn, armer, d)
	d.Registry.addUnattached(p)
	return p
}

// NewIncomingPeer implements peer_create_in: a peer accepted by the listener,
// handshake not yet sent (the surrounding I/O layer sends it upon receiving the
// peer's shake, per spec.md §3 Lifecycle).
func NewIncomingPeer(conn net.Conn, armer writeArmer, d Deps) *Peer {
	p := peerCreateCommon(conn, armer, d)
	p.flags.set(flagIncoming)
	return p
}

// DialOut implements peer_create_out: dials the peer, then immediately sends
// our handshake (spec.md §3 Lifecycle: "Handshake sent immediately for
// outbound").
func DialOut(ctx context.Context, dialer Dialer, ip net.IP, port int, t *Torrent, ourID [20]byte, armer writeArmer, d Deps) (*Peer, error) {
	conn, err := dialer.Dial(ctx, ip, port)
	if err != nil {
		return nil, err
	}
	p := peerCreateCommon(conn, armer, d)
	p.t = t
	p.sendShake(t, ourID)
	return p, nil
}

// DialOutCompact implements peer_create_out_compact against a compact
// (4-byte IP + 2-byte port) address (spec.md §9).
func DialOutCompact(ctx context.Context, dialer Dialer, compact []byte, t *Torrent, ourID [20]byte, armer writeArmer, d Deps) (*Peer, error) {
	conn, err := DialCompact(ctx, dialer, compact)
	if err != nil {
		return nil, err
	}
	p := peerCreateCommon(conn, armer, d)
	p.t = t
	p.sendShake(t, ourID)
	return p, nil
}

func (p *Peer) sendShake(t *Torrent, ourID [20]byte) {
	p.enqueue(pp.NewShake(t.InfoHash, ourID))
}

// enqueue appends nb to outq, holding it for this peer's reference.
func (p *Peer) enqueue(nb *pp.NetBuf) *list.Element[*pp.NetBuf] {
	return p.outq.enqueue(nb)
}

// Torrent returns the torrent this peer is attached to, or nil before the
// handshake resolves it.
func (p *Peer) Torrent() *Torrent { return p.t }

// NumPiecesOut reports npiece_msgs: the TORRENTDATA entries currently queued.
func (p *Peer) NumPiecesOut() int { return p.outq.npieceMsgs }

// NumRequestsOut reports nreqs_out == |my_reqs|.
func (p *Peer) NumRequestsOut() int { return p.nreqsOut }

// NumPiecesHave reports npieces, the popcount of piece_field.
func (p *Peer) NumPiecesHave() int { return p.npieces }

// Closed reports whether Kill has already run.
func (p *Peer) Closed() bool { return p.closed.IsSet() }

// --- predicates exposed to collaborators (spec.md §6) ---

// PeerChokes reports whether the remote peer is choking us (peer_chokes).
func (p *Peer) PeerChokes() bool { return p.flags.has(flagPChoke) }

// PeerHas reports whether the peer claims to have piece i (peer_has).
func (p *Peer) PeerHas(i uint32) bool { return p.pieceField.Contains(i) }

// Laden reports whether our pipeline to this peer is full (peer_laden).
func (p *Peer) Laden() bool { return p.nreqsOut >= p.cfg.MaxPipedRequests }

// Wanted reports whether we are interested in this peer (peer_wanted).
func (p *Peer) Wanted() bool { return p.flags.has(flagIWant) }

// LeechOk reports whether we want this peer and it isn't choking us
// (peer_leech_ok).
func (p *Peer) LeechOk() bool {
	return p.flags.has(flagIWant) && !p.flags.has(flagPChoke)
}

// ActiveDown reports whether we're actively downloading from this peer, or
// could usefully start (peer_active_down).
func (p *Peer) ActiveDown() bool {
	return p.LeechOk() || p.nreqsOut > 0
}

// ActiveUp reports whether we're actively uploading, or about to
// (peer_active_up).
func (p *Peer) ActiveUp() bool {
	return (p.flags.has(flagPWant) && !p.flags.has(flagIChoke)) || p.outq.npieceMsgs > 0
}

// Full reports whether the peer claims to have every piece (peer_full).
func (p *Peer) Full() bool {
	if p.t == nil {
		return false
	}
	return p.npieces == p.t.TotalPieces
}

// Kill implements peer_kill: idempotent, safe to call from any handler, from
// any point in a queue traversal, provided the caller doesn't touch the peer
// afterwards (spec.md §5). It removes the peer from every registry list,
// notifies the schedulers (only if the peer had attached), drains outq, and
// closes the socket.
func (p *Peer) Kill(reason KillReason) {
	if !p.closed.Set() {
		return
	}
	attached := p.flags.has(flagAttached)
	p.registry.remove(p)
	if attached {
		if p.ul != nil {
			p.ul.OnLostPeer(p)
		}
		if p.dl != nil {
			p.dl.OnLostPeer(p)
		}
	}
	p.outq.drain()
	p.conn.Close()
	p.logger.WithDefaultLevel(log.Debug).Printf("killed peer %s: %s", p.conn.RemoteAddr(), reason)
}
