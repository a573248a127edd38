package torrent

import (
	list "github.com/bahlo/generic-list-go"

	pp "github.com/dannyzb/peercore/peer_protocol"
)

// writeArmer is implemented by the surrounding event loop (out of scope here,
// spec.md §1) to arm/unarm the per-peer write-ready registration. outQueue
// calls it exactly at the transitions spec.md §4.2 describes: armed when the
// queue goes from empty to non-empty, unarmed when it drains back to empty.
type writeArmer interface {
	ArmWrite()
	UnarmWrite()
}

// outQueue is the ordered sequence of NetBuf holds waiting to be written,
// spec.md §4.2. It is built on a doubly-linked list (rather than the original's
// intrusive TAILQ) so unsend can remove an arbitrary entry in O(1) given the
// *list.Element it was handed at enqueue time.
//
// The queue's defining property is the "head partially written" guard: once any
// byte of the head entry has gone out on the wire (off > 0), that entry can no
// longer be unsent — only everything behind it can. This is what makes the
// queue a speculative send buffer and is what request cancellation and the
// choke-triggered piece purge both depend on.
type outQueue struct {
	entries *list.List[*pp.NetBuf]
	off     int
	armer   writeArmer

	// npieceMsgs mirrors Peer.npiece_msgs: the count of TORRENTDATA entries
	// currently queued, kept here because enqueue/unsend are where it changes.
	npieceMsgs int
}

func newOutQueue(armer writeArmer) *outQueue {
	return &outQueue{entries: list.New[*pp.NetBuf](), armer: armer}
}

// Len reports the number of queued NetBufs.
func (q *outQueue) Len() int {
	return q.entries.Len()
}

// Off reports how many bytes of the head entry have already been written.
func (q *outQueue) Off() int {
	return q.off
}

// enqueue appends nb, holding it, and arms the write event on the empty→non-empty
// transition (spec.md §4.2 "enqueue").
func (q *outQueue) enqueue(nb *pp.NetBuf) *list.Element[*pp.NetBuf] {
	nb.Hold()
	wasEmpty := q.entries.Len() == 0
	e := q.entries.PushBack(nb)
	if wasEmpty {
		q.armer.ArmWrite()
	}
	if nb.Tag == pp.TorrentData {
		q.npieceMsgs++
	}
	return e
}

// unsend removes e from the queue unless it is the head and partially written.
// Returns whether the removal happened (spec.md §4.2 "unsend").
func (q *outQueue) unsend(e *list.Element[*pp.NetBuf]) bool {
	if e == q.entries.Front() && q.off > 0 {
		return false
	}
	nb := q.entries.Remove(e)
	if nb.Tag == pp.TorrentData {
		q.npieceMsgs--
	}
	nb.Drop()
	if q.entries.Len() == 0 {
		q.armer.UnarmWrite()
	}
	return true
}

// headProgressed advances off by n bytes written from the head entry; once the
// head is fully written it is popped, off resets to 0, and sent(nb) fires
// (spec.md §4.2 "head-progressed").
func (q *outQueue) headProgressed(n int, sent func(nb *pp.NetBuf)) {
	for n > 0 {
		front := q.entries.Front()
		if front == nil {
			panic("headProgressed called on empty outQueue")
		}
		nb := front.Value
		remaining := len(nb.Bytes) - q.off
		if n < remaining {
			q.off += n
			return
		}
		n -= remaining
		q.entries.Remove(front)
		q.off = 0
		if nb.Tag == pp.TorrentData {
			q.npieceMsgs--
		}
		sent(nb)
		nb.Drop()
		if q.entries.Len() == 0 {
			q.armer.UnarmWrite()
		}
	}
}

// front returns the head entry's NetBuf, or nil if the queue is empty.
func (q *outQueue) front() *pp.NetBuf {
	if e := q.entries.Front(); e != nil {
		return e.Value
	}
	return nil
}

// each calls f for every queued entry from head to tail, in order. f may call
// unsend on the element it was given; iteration continues safely because we
// snapshot the next pointer before calling f.
func (q *outQueue) each(f func(e *list.Element[*pp.NetBuf])) {
	e := q.entries.Front()
	for e != nil {
		next := e.Next()
		f(e)
		e = next
	}
}

// drain unconditionally removes and drops every entry, used when killing a
// peer. off is left as-is: the peer is dead, no further writes will occur.
func (q *outQueue) drain() {
	for {
		front := q.entries.Front()
		if front == nil {
			return
		}
		nb := q.entries.Remove(front)
		if nb.Tag == pp.TorrentData {
			q.npieceMsgs--
		}
		nb.Drop()
		if q.entries.Len() == 0 {
			q.armer.UnarmWrite()
		}
	}
}
