package network

import (
	"context"
	"testing"
)

func TestNoopNetwork(t *testing.T) {
	var n Network = NoopNetwork{}
	if n.LocalAddr().String() != "127.0.0.1:30303" {
		t.Fatalf("local addr = %s", n.LocalAddr())
	}
	if n.ChainID() != 1 || n.IsSyncing() || n.IsInitiallySyncing() || n.NumPeers() != 0 {
		t.Fatal("noop network should be idle mainnet with no peers")
	}
	status, err := n.NetworkStatus(context.Background())
	if err != nil || status != (Status{}) {
		t.Fatalf("status = %+v, %v", status, err)
	}
	peers, err := n.PeersInfo(context.Background())
	if err != nil || len(peers) != 0 {
		t.Fatalf("peers = %v, %v", peers, err)
	}
}

func TestStatic(t *testing.T) {
	s := &Static{
		Chain:    5,
		Syncing:  true,
		Info:     Status{ClientVersion: "ethlayer/v0.1.0", ProtocolVersion: 68},
		PeerList: []PeerInfo{{ID: "a"}, {ID: "b", Inbound: true}},
	}
	if s.ChainID() != 5 || !s.IsSyncing() || s.NumPeers() != 2 {
		t.Fatal("static network fields not reported")
	}
	if s.LocalAddr().String() != "127.0.0.1:30303" {
		t.Fatal("nil Addr should fall back to the default listen address")
	}
	peers, _ := s.PeersInfo(context.Background())
	peers[0].ID = "mutated"
	if s.PeerList[0].ID != "a" {
		t.Fatal("PeersInfo must return a copy")
	}
}
