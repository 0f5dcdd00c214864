package rpc

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
)

// maxMsgSize bounds request and reply sizes. Frames are tiny.
const maxMsgSize = 1 << 20

// Server runs the measurement service on a TCP listener.
type Server struct {
	addr     string
	svc      MeasurementServer
	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

func NewServer(addr string, svc MeasurementServer) *Server {
	return &Server{addr: addr, svc: svc}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("grpc server already running")
	}

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.serve(lis)
}

func (s *Server) serve(lis net.Listener) error {
	s.listener = lis
	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(s.server, s.svc)
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("[rpc] gRPC server listening on %s", lis.Addr())
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			log.Printf("[rpc] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.server.GracefulStop()
	s.wg.Wait()
	log.Printf("[rpc] gRPC server stopped")
}
