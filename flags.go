package torrent

// peerFlags is the bit set over spec.md §3's flag axes, kept as a single word
// the way the original C peer does (p->flags), rather than one bool field per
// flag, so invariant checks can be written as simple bit tests.
type peerFlags uint16

const (
	flagIChoke peerFlags = 1 << iota
	flagPChoke
	flagIWant
	flagPWant
	flagIncoming
	flagAttached
	flagOnReadQ
	flagOnWriteQ
	flagNoRequests
	flagDoUnwant
)

func (f peerFlags) has(bit peerFlags) bool { return f&bit != 0 }

func (f *peerFlags) set(bit peerFlags)   { *f |= bit }
func (f *peerFlags) clear(bit peerFlags) { *f &^= bit }
