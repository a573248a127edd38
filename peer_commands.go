package torrent

import (
	"errors"

	list "github.com/bahlo/generic-list-go"

	pp "github.com/dannyzb/peercore/peer_protocol"
)

// ErrTooManyRequests is returned by Request when the pipeline to this peer is
// already at MaxPipedRequests (spec.md §4.4 "request" precondition).
var ErrTooManyRequests = errors.New("peer: too many outstanding requests")

// Request implements peer_request: append blk to my_reqs, bump nreqs_out, and
// enqueue its REQUEST NetBuf. Returns the list element so a later Cancel can
// remove it in O(1), the Go equivalent of the original holding a
// block_request pointer directly (spec.md §9 "Back-references into
// block_request").
func (p *Peer) Request(blk *Block) (*list.Element[*Block], error) {
	if p.nreqsOut >= p.cfg.MaxPipedRequests {
		return nil, ErrTooManyRequests
	}
	elem := p.myReqs.PushBack(blk)
	p.nreqsOut++
	p.enqueue(blk.Msg)
	return elem, nil
}

// Cancel implements peer_cancel: remove the request from my_reqs, and either
// unsend its still-queued REQUEST (no bytes hit the wire) or, if it already
// started going out, enqueue cancelMsg instead. If that was the last
// outstanding request, onNoReqs runs the deferred DO_UNWANT handling.
func (p *Peer) Cancel(elem *list.Element[*Block], cancelMsg *pp.NetBuf) {
	blk := p.myReqs.Remove(elem)
	p.nreqsOut--

	removed := false
	p.outq.each(func(e *list.Element[*pp.NetBuf]) {
		if removed {
			return
		}
		if e.Value.Matches(blk.Req.Index, blk.Req.Begin, blk.Req.Length) && e.Value.Tag == pp.Request {
			removed = p.outq.unsend(e)
		}
	})
	if !removed {
		p.enqueue(cancelMsg)
	}
	if p.nreqsOut == 0 {
		p.onNoReqs()
	}
}

// Unchoke implements peer_unchoke: clear I_CHOKE, enqueue UNCHOKE.
func (p *Peer) Unchoke() {
	p.flags.clear(flagIChoke)
	p.enqueue(pp.NewUnchoke())
}

// Choke implements peer_choke: before sending CHOKE, purge every speculatively
// queued PIECE/TORRENTDATA pair — both or neither, in order, per spec.md §4.2
// and §5's pairing guarantee — then set I_CHOKE and enqueue CHOKE.
func (p *Peer) Choke() {
	p.purgeQueuedPieces()
	p.flags.set(flagIChoke)
	p.enqueue(pp.NewChoke())
}

// purgeQueuedPieces cancels every (PIECE header, TORRENTDATA) pair in outq that
// can still be cancelled, always as a pair (original_source/btpd/peer.c
// peer_choke).
func (p *Peer) purgeQueuedPieces() {
	e := p.outq.entries.Front()
	for e != nil {
		next := e.Next()
		if e.Value.Tag == pp.PieceHeader {
			data := next
			if data != nil {
				next = data.Next()
			}
			if p.outq.unsend(e) && data != nil {
				p.outq.unsend(data)
			}
		}
		e = next
	}
}

// Want implements peer_want: bump nwant; on the 0→1 transition either cancel a
// still-queued trailing UNINTEREST or enqueue an INTEREST, and set I_WANT.
// Otherwise (a request is already outstanding) just clear the deferred
// DO_UNWANT — we want again, so no UNINTEREST should follow.
func (p *Peer) Want(index uint32) {
	p.nwant++
	if p.nwant != 1 {
		return
	}
	if p.nreqsOut == 0 {
		unsent := false
		if last := p.outq.entries.Back(); last != nil && last.Value.Tag == pp.NotInterested {
			unsent = p.outq.unsend(last)
		}
		if !unsent {
			p.enqueue(pp.NewInterested())
		}
	} else {
		p.flags.clear(flagDoUnwant)
	}
	p.flags.set(flagIWant)
}

// Unwant implements peer_unwant: decrement nwant; on the 1→0 transition clear
// I_WANT and either send UNINTEREST immediately (no requests outstanding) or
// defer it via DO_UNWANT until the last reply arrives (onNoReqs).
//
// spec.md §9 notes the asymmetry: the cancellable-tail check in Want only looks
// at the very last outq entry, so if something else was queued after a pending
// UNINTEREST, Want will send a redundant INTEREST rather than cancel it. That
// same asymmetry is reproduced here rather than "fixed", since it's protocol-safe
// and changing it would diverge from the grounding source.
func (p *Peer) Unwant(index uint32) {
	p.nwant--
	if p.nwant != 0 {
		return
	}
	p.flags.clear(flagIWant)
	if p.nreqsOut == 0 {
		p.enqueue(pp.NewNotInterested())
	} else {
		p.flags.set(flagDoUnwant)
	}
}

// onNoReqs implements peer_on_no_reqs: fires whenever nreqs_out drops to zero,
// flushing a deferred UNINTEREST if Unwant set DO_UNWANT while requests were
// still in flight.
func (p *Peer) onNoReqs() {
	if p.flags.has(flagDoUnwant) {
		p.flags.clear(flagDoUnwant)
		p.enqueue(pp.NewNotInterested())
	}
}
