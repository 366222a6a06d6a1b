package rpc

import (
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
)

// Server serves a handler bundle over JSON-RPC. Plain requests are accepted
// on "/", WebSocket connections (needed for eth_subscribe) on "/ws".
type Server struct {
	srv *rpc.Server
	mux *http.ServeMux
}

// NewServer registers the bundle's services on a go-ethereum rpc.Server.
func NewServer(h *EthHandlers) (*Server, error) {
	srv := rpc.NewServer()
	for _, api := range h.APIs() {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			srv.Stop()
			return nil, err
		}
	}
	s := &Server{srv: srv, mux: http.NewServeMux()}
	s.mux.Handle("/ws", srv.WebsocketHandler([]string{"*"}))
	s.mux.Handle("/", srv)
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// DialInProc returns a client connected to the server without a network
// round trip.
func (s *Server) DialInProc() *rpc.Client {
	return rpc.DialInProc(s.srv)
}

// Stop closes all connections.
func (s *Server) Stop() {
	s.srv.Stop()
}
