package peer_protocol

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// TestMultiHaveVsBitfieldByteCost exercises the exact inequality onShake uses
// to pick between MULTIHAVE and BITFIELD+BITDATA
// (9 * have_count < 5 + ceil(npieces/8)), table-driven over the boundary
// cases, independent of any Peer/Torrent wiring.
func TestMultiHaveVsBitfieldByteCost(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		name       string
		have       int
		npieces    int
		wantSparse bool
	}{
		{"single piece out of a thousand", 1, 1000, true},
		{"half of eight pieces", 4, 8, false},
		{"all eight pieces", 8, 8, false},
		{"boundary just under", 1, 40, true},    // 9*1=9 < 5+5=10
		{"well over the boundary", 2, 8, false}, // 9*2=18, 5+1=6
	}
	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			fieldLen := bitfieldLen(tc.npieces)
			sparse := 9*tc.have < 5+fieldLen
			c.Assert(sparse, qt.Equals, tc.wantSparse)
		})
	}
}

func TestMultiHaveBytesCheaperThanBitfieldWhenSparse(t *testing.T) {
	c := qt.New(t)
	bits := []uint32{0}
	multihave := NewMultiHave(bits)
	fieldLen := bitfieldLen(1000)
	bitfieldTotal := len(NewBitfieldHeader(fieldLen).Bytes) + fieldLen
	c.Assert(len(multihave.Bytes) < bitfieldTotal, qt.IsTrue)
}
