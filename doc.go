// Package torrent implements the peer-connection core of a BitTorrent client:
// per-peer protocol state, the outbound message queue with speculative-send
// cancellation, pipelined block requests, and the registry of live connections.
// Tracker communication, piece storage, and piece-picking policy are consumed
// through the ContentManager, UploadScheduler and DownloadScheduler interfaces
// rather than implemented here.
package torrent
