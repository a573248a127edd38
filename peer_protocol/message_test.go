package peer_protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShakeLayout(t *testing.T) {
	var infoHash, peerID [20]byte
	infoHash[0] = 1
	peerID[0] = 2
	nb := NewShake(infoHash, peerID)
	require.Equal(t, HandshakeLen, len(nb.Bytes))
	assert.Equal(t, byte(len(ProtocolString)), nb.Bytes[0])
	assert.Equal(t, ProtocolString, string(nb.Bytes[1:1+len(ProtocolString)]))
	assert.Equal(t, infoHash[:], nb.Bytes[1+len(ProtocolString)+8:1+len(ProtocolString)+8+20])
	assert.Equal(t, peerID[:], nb.Bytes[1+len(ProtocolString)+8+20:])
	assert.Equal(t, Shake, nb.Tag)
}

func TestSimpleMessagesRoundtripThroughDecoder(t *testing.T) {
	cases := []struct {
		name string
		nb   *NetBuf
		kind EventKind
	}{
		{"choke", NewChoke(), EventChoke},
		{"unchoke", NewUnchoke(), EventUnchoke},
		{"interested", NewInterested(), EventInterested},
		{"not_interested", NewNotInterested(), EventNotInterested},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := NewDecoder()
			// drain the handshake prefix out of the way with a throwaway shake.
			_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
			require.NoError(t, err)
			events, err := d.Feed(c.nb.Bytes)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, c.kind, events[0].Kind)
		})
	}
}

func TestNewRequestAndCancelMatch(t *testing.T) {
	req := NewRequest(1, 2, 3)
	assert.True(t, req.Matches(1, 2, 3))
	assert.False(t, req.Matches(1, 2, 4))

	cancel := NewCancel(1, 2, 3)
	assert.True(t, cancel.Matches(1, 2, 3))

	header := NewPieceHeader(1, 2, 3)
	assert.True(t, header.Matches(1, 2, 3))

	// TorrentData, Choke etc never match, regardless of coordinates.
	assert.False(t, NewChoke().Matches(0, 0, 0))
}

func TestNewPieceHeaderLengthPrefixCoversData(t *testing.T) {
	nb := NewPieceHeader(5, 10, 1024)
	length := be32ToUint(nb.Bytes[0:4])
	assert.Equal(t, uint32(9+1024), length)
}

func TestRefCountHoldDrop(t *testing.T) {
	nb := NewHave(7)
	assert.Equal(t, int64(1), nb.RefCount())
	nb.Hold()
	assert.Equal(t, int64(2), nb.RefCount())
	nb.Drop()
	assert.Equal(t, int64(1), nb.RefCount())
	nb.Drop()
	assert.Equal(t, int64(0), nb.RefCount())
}

func TestNewMultiHaveConcatenatesHaves(t *testing.T) {
	nb := NewMultiHave([]uint32{2, 5, 9})
	assert.Equal(t, MultiHave, nb.Tag)
	assert.Equal(t, len(NewHave(2).Bytes)*3, len(nb.Bytes))
}
