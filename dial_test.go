package torrent

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDialer struct {
	gotIP   net.IP
	gotPort int
}

func (d *recordingDialer) Dial(_ context.Context, ip net.IP, port int) (net.Conn, error) {
	d.gotIP = ip
	d.gotPort = port
	client, _ := net.Pipe()
	return client, nil
}

func TestDialCompactRejectsShortBuffer(t *testing.T) {
	d := &recordingDialer{}
	_, err := DialCompact(context.Background(), d, []byte{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, errShortCompactAddr)
}

func TestDialCompactDecodesNetworkByteOrder(t *testing.T) {
	d := &recordingDialer{}
	compact := []byte{192, 168, 1, 1, 0x1A, 0xE1} // port 6881
	conn, err := DialCompact(context.Background(), d, compact)
	require.NoError(t, err)
	defer conn.Close()

	assert.True(t, d.gotIP.Equal(net.IPv4(192, 168, 1, 1)))
	assert.Equal(t, 6881, d.gotPort)
}
