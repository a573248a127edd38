package peer_protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderHandshakeSplitAcrossFeeds(t *testing.T) {
	var infoHash, peerID [20]byte
	infoHash[3] = 9
	peerID[3] = 8
	shake := NewShake(infoHash, peerID).Bytes

	d := NewDecoder()
	var events []Event
	for _, b := range shake {
		ev, err := d.Feed([]byte{b})
		require.NoError(t, err)
		events = append(events, ev...)
	}
	require.Len(t, events, 1)
	assert.Equal(t, EventShake, events[0].Kind)
	assert.Equal(t, infoHash, events[0].InfoHash)
	assert.Equal(t, peerID, events[0].PeerID)
}

func TestDecoderKeepalive(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)
	events, err := d.Feed(NewKeepalive().Bytes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventKeepalive, events[0].Kind)
}

func TestDecoderHaveAndRequest(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	events, err := d.Feed(NewHave(42).Bytes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventHave, events[0].Kind)
	assert.Equal(t, uint32(42), events[0].Index)

	events, err = d.Feed(NewRequest(1, 2, 16384).Bytes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventRequest, events[0].Kind)
	assert.Equal(t, uint32(1), events[0].Index)
	assert.Equal(t, uint32(2), events[0].Begin)
	assert.Equal(t, uint32(16384), events[0].Length)
}

func TestDecoderBitfieldRequiresNumPieces(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	field := []byte{0xff, 0x80}
	nb := NewBitfieldHeader(len(field))
	_, err = d.Feed(nb.Bytes)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestDecoderBitfieldRoundtrip(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)
	d.SetNumPieces(9)

	field := []byte{0xff, 0x80}
	header := NewBitfieldHeader(len(field))
	data := NewBitData(field)

	events, err := d.Feed(header.Bytes)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = d.Feed(data.Bytes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventBitfield, events[0].Kind)
	assert.Equal(t, field, events[0].Bitfield)
}

func TestDecoderBitfieldWrongLengthIsProtocolError(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)
	d.SetNumPieces(100) // expects ceil(100/8) = 13 bytes

	wrongHeader := NewBitfieldHeader(2) // claims only 2
	_, err = d.Feed(wrongHeader.Bytes)
	require.Error(t, err)
}

func TestDecoderBitfieldOverMaxIsProtocolError(t *testing.T) {
	d := NewDecoder()
	d.SetLimits(1, 0) // at most 1 byte of bitfield
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)
	d.SetNumPieces(100) // ceil(100/8) = 13 bytes, over the limit

	header := NewBitfieldHeader(13)
	_, err = d.Feed(header.Bytes)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestDecoderPieceOverMaxBlockLengthIsProtocolError(t *testing.T) {
	d := NewDecoder()
	d.SetLimits(0, 4) // at most 4 bytes of piece data
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	header := NewPieceHeader(0, 0, 5) // one byte over the limit
	_, err = d.Feed(header.Bytes)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestDecoderRequestOverMaxBlockLengthIsProtocolError(t *testing.T) {
	d := NewDecoder()
	d.SetLimits(0, 4)
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	_, err = d.Feed(NewRequest(0, 0, 5).Bytes)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestDecoderCancelOverMaxBlockLengthIsProtocolError(t *testing.T) {
	d := NewDecoder()
	d.SetLimits(0, 4)
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	_, err = d.Feed(NewCancel(0, 0, 5).Bytes)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestDecoderPieceZeroLength(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	header := NewPieceHeader(3, 4, 0)
	events, err := d.Feed(header.Bytes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPiece, events[0].Kind)
	assert.Equal(t, uint32(3), events[0].Index)
	assert.Equal(t, uint32(4), events[0].Begin)
	assert.Equal(t, uint32(0), events[0].Length)
	assert.Empty(t, events[0].Data)
}

func TestDecoderPieceWithData(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	payload := []byte{1, 2, 3, 4, 5}
	header := NewPieceHeader(0, 0, uint32(len(payload)))
	data := NewTorrentData(payload)

	events, err := d.Feed(header.Bytes)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = d.Feed(data.Bytes)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, payload, events[0].Data)
}

func TestDecoderBadPstrlenIsProtocolError(t *testing.T) {
	d := NewDecoder()
	bad := NewShake([20]byte{}, [20]byte{}).Bytes
	bad[0] = 5
	_, err := d.Feed(bad)
	require.Error(t, err)
	var pe *ProtocolError
	assert.ErrorAs(t, err, &pe)
}

func TestDecoderUnknownMessageIDIsProtocolError(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	buf := []byte{0, 0, 0, 1, 99} // length 1, unknown id 99
	_, err = d.Feed(buf)
	require.Error(t, err)
}

func TestDecoderFeedMultipleMessagesInOneCall(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed(NewShake([20]byte{}, [20]byte{}).Bytes)
	require.NoError(t, err)

	var buf []byte
	buf = append(buf, NewChoke().Bytes...)
	buf = append(buf, NewHave(3).Bytes...)
	buf = append(buf, NewInterested().Bytes...)

	events, err := d.Feed(buf)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventChoke, events[0].Kind)
	assert.Equal(t, EventHave, events[1].Kind)
	assert.Equal(t, EventInterested, events[2].Kind)
}
