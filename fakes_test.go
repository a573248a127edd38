package torrent

import (
	"context"
	"net"

	"github.com/anacrolix/log"
)

// fakeArmer records ArmWrite/UnarmWrite transitions without driving any real
// I/O, the same role a minimal event-loop stub plays for outQueue in
// isolation.
type fakeArmer struct {
	armed     bool
	armCount  int
	unarmCount int
}

func (a *fakeArmer) ArmWrite()   { a.armed = true; a.armCount++ }
func (a *fakeArmer) UnarmWrite() { a.armed = false; a.unarmCount++ }

// fakeContentManager is an in-memory ContentManager: a fixed bitfield of
// completed pieces and a single byte value repeated for any GetBytes call.
type fakeContentManager struct {
	field    []byte
	have     int
	fillByte byte
	err      error
}

func (cm *fakeContentManager) GetBytes(_ context.Context, _ *Torrent, _, _, length uint32) ([]byte, error) {
	if cm.err != nil {
		return nil, cm.err
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = cm.fillByte
	}
	return buf, nil
}

func (cm *fakeContentManager) GetNumPieces(*Torrent) int { return cm.have }

func (cm *fakeContentManager) Bitfield(*Torrent) []byte { return cm.field }

// fakeUploadScheduler and fakeDownloadScheduler record every callback they
// receive, for assertions on call order/arguments.
type fakeUploadScheduler struct {
	newPeers     []*Peer
	lostPeers    []*Peer
	interests    []*Peer
	uninterests  []*Peer
}

func (u *fakeUploadScheduler) OnNewPeer(p *Peer)    { u.newPeers = append(u.newPeers, p) }
func (u *fakeUploadScheduler) OnLostPeer(p *Peer)   { u.lostPeers = append(u.lostPeers, p) }
func (u *fakeUploadScheduler) OnInterest(p *Peer)   { u.interests = append(u.interests, p) }
func (u *fakeUploadScheduler) OnUninterest(p *Peer) { u.uninterests = append(u.uninterests, p) }

type blockDelivery struct {
	peer *Peer
	req  Request
	data []byte
}

type fakeDownloadScheduler struct {
	newPeers      []*Peer
	lostPeers     []*Peer
	chokes        []*Peer
	unchokes      []*Peer
	announced     []uint32
	blocks        []blockDelivery
}

func (d *fakeDownloadScheduler) OnNewPeer(p *Peer)  { d.newPeers = append(d.newPeers, p) }
func (d *fakeDownloadScheduler) OnLostPeer(p *Peer) { d.lostPeers = append(d.lostPeers, p) }
func (d *fakeDownloadScheduler) OnChoke(p *Peer)    { d.chokes = append(d.chokes, p) }
func (d *fakeDownloadScheduler) OnUnchoke(p *Peer)  { d.unchokes = append(d.unchokes, p) }
func (d *fakeDownloadScheduler) OnPieceAnnounced(_ *Peer, index uint32) {
	d.announced = append(d.announced, index)
}
func (d *fakeDownloadScheduler) OnBlock(p *Peer, req Request, data []byte) {
	d.blocks = append(d.blocks, blockDelivery{p, req, data})
}

// fakeLookup resolves a single info_hash to a single Torrent, enough for
// onShake tests against an inbound peer.
type fakeLookup struct {
	infoHash [20]byte
	t        *Torrent
}

func (l *fakeLookup) LookupTorrent(infoHash [20]byte) *Torrent {
	if infoHash == l.infoHash {
		return l.t
	}
	return nil
}

var (
	_ ContentManager   = (*fakeContentManager)(nil)
	_ UploadScheduler  = (*fakeUploadScheduler)(nil)
	_ DownloadScheduler = (*fakeDownloadScheduler)(nil)
	_ TorrentLookup    = (*fakeLookup)(nil)
	_ writeArmer       = (*fakeArmer)(nil)
)

// newTestPeer builds a Peer wired to an in-memory net.Pipe connection and a
// fakeArmer, with whichever Deps fields the caller cares about; the paired
// Conn is returned so a test can feed it or read what was written.
func newTestPeer(armer writeArmer, d Deps) (*Peer, net.Conn) {
	client, server := net.Pipe()
	if d.Registry == nil {
		d.Registry = NewNetRegistry(log.Default)
	}
	p := peerCreateCommon(server, armer, d)
	return p, client
}

// testDeps returns a Deps with every field populated to a sane, inert
// default; individual tests override the fields they care about.
func testDeps() Deps {
	return Deps{
		Registry: NewNetRegistry(log.Default),
		Config:   DefaultConfig(),
		CM:       &fakeContentManager{},
		UL:       &fakeUploadScheduler{},
		DL:       &fakeDownloadScheduler{},
		Logger:   log.Default,
	}
}
