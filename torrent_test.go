package torrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTorrentStoresInfoHashAndTotalPieces(t *testing.T) {
	infoHash := [20]byte{1}
	tr := NewTorrent(infoHash, 10)
	assert.Equal(t, infoHash, tr.InfoHash)
	assert.Equal(t, 10, tr.TotalPieces)
}
