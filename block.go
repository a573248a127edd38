package torrent

import pp "github.com/dannyzb/peercore/peer_protocol"

// Block is the download scheduler's view of a pipelined request: the
// (index, begin, length) coordinates plus the pre-built REQUEST NetBuf to
// enqueue. Msg is shared: the same Block (and so the same NetBuf) may be handed
// to Peer.Request on more than one peer at once, since a download scheduler
// commonly requests the same block from several peers or re-offers a cancelled
// request to a different peer (spec.md §4.1, §9 "Reference-counted NetBufs").
//
// Block itself is owned by the download scheduler, not by any Peer; a Peer's
// my_reqs only holds a reference until the request is answered or cancelled
// (spec.md §9 "Back-references into block_request").
type Block struct {
	Req Request
	Msg *pp.NetBuf
}
