// Package network defines the networking capability the handlers read
// (sync state, peer counts, node status) and an inert implementation.
package network

import (
	"context"
	"net"
)

// Status describes the local node.
type Status struct {
	ClientVersion   string
	ProtocolVersion uint64
	Enode           string
}

// PeerInfo describes one connected peer.
type PeerInfo struct {
	ID         string
	RemoteAddr string
	Inbound    bool
}

// NetworkInfo exposes the local node's network identity and sync state.
type NetworkInfo interface {
	LocalAddr() net.Addr
	NetworkStatus(ctx context.Context) (Status, error)
	ChainID() uint64
	IsSyncing() bool
	IsInitiallySyncing() bool
}

// Peers exposes the connected peer set.
type Peers interface {
	NumPeers() int
	PeersInfo(ctx context.Context) ([]PeerInfo, error)
}

// Network is the full capability expected in the network slot.
type Network interface {
	NetworkInfo
	Peers
}

// NoopNetwork reports an idle, fully synced node on mainnet with no peers.
type NoopNetwork struct{}

var _ Network = NoopNetwork{}

// noopAddr is the default devp2p listen address.
var noopAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 30303}

func (NoopNetwork) LocalAddr() net.Addr                           { return noopAddr }
func (NoopNetwork) NetworkStatus(context.Context) (Status, error) { return Status{}, nil }
func (NoopNetwork) ChainID() uint64                               { return 1 }
func (NoopNetwork) IsSyncing() bool                               { return false }
func (NoopNetwork) IsInitiallySyncing() bool                      { return false }
func (NoopNetwork) NumPeers() int                                 { return 0 }
func (NoopNetwork) PeersInfo(context.Context) ([]PeerInfo, error) { return nil, nil }

// Static is a fixed snapshot of network state, for embedders that manage
// networking elsewhere and for tests.
type Static struct {
	Addr        net.Addr
	Info        Status
	Chain       uint64
	Syncing     bool
	InitialSync bool
	PeerList    []PeerInfo
}

var _ Network = (*Static)(nil)

func (s *Static) LocalAddr() net.Addr {
	if s.Addr == nil {
		return noopAddr
	}
	return s.Addr
}

func (s *Static) NetworkStatus(context.Context) (Status, error) { return s.Info, nil }
func (s *Static) ChainID() uint64                               { return s.Chain }
func (s *Static) IsSyncing() bool                               { return s.Syncing }
func (s *Static) IsInitiallySyncing() bool                      { return s.InitialSync }
func (s *Static) NumPeers() int                                 { return len(s.PeerList) }

func (s *Static) PeersInfo(context.Context) ([]PeerInfo, error) {
	return append([]PeerInfo(nil), s.PeerList...), nil
}
