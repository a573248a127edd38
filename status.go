package torrent

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Status renders a one-line human-readable summary of a peer's connection
// state, in the vein of the teacher's debug-status helpers: counts plus
// humanized byte totals rather than raw numbers (dustin/go-humanize, as used
// for similar status lines in the rest of the retrieval pack).
func (p *Peer) Status() string {
	var fieldBytes int
	if p.t != nil {
		fieldBytes = bitfieldByteLen(p.t.TotalPieces)
	}
	return fmt.Sprintf(
		"peer %s: have=%d/%d reqs_out=%d piece_msgs=%d field=%s choke(i=%v,p=%v) want(i=%v,p=%v)",
		p.conn.RemoteAddr(),
		p.npieces, p.pieceCountLabel(),
		p.nreqsOut,
		p.outq.npieceMsgs,
		humanize.Bytes(uint64(fieldBytes)),
		p.flags.has(flagIChoke), p.flags.has(flagPChoke),
		p.flags.has(flagIWant), p.flags.has(flagPWant),
	)
}

func (p *Peer) pieceCountLabel() string {
	if p.t == nil {
		return "?"
	}
	return fmt.Sprintf("%d", p.t.TotalPieces)
}
