package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/0xmhha/blockstream-go/registry"
	pb "github.com/0xmhha/blockstream-go/server/proto"
)

// Server hosts the control RPC.
type Server struct {
	grpc   *grpc.Server
	port   int
	logger *zap.Logger
}

// New builds the control RPC server on the given port.
func New(control registry.ControlPlane, port int, logger *zap.Logger) *Server {
	s := grpc.NewServer()
	pb.RegisterBlockStreamerServer(s, NewBlockStreamerService(control, logger))
	return &Server{grpc: s, port: port, logger: logger}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.logger.Info("starting control RPC server", zap.String("addr", addr))
	return s.grpc.Serve(listener)
}

// Stop drains in-flight RPCs and stops the server; the context bounds the
// graceful phase.
func (s *Server) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}
