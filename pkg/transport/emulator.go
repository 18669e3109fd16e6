package transport

import (
	"context"
	"math/rand"
	"net"
	"sync"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bft-labs/mutbatch/pkg/log"
)

// FaultFunc may return a non-nil error to fail an entry instead of applying it.
type FaultFunc func(entry *bigtablepb.MutateRowsRequest_Entry) error

// RandomFault fails each entry with code at the given rate.
func RandomFault(rate float64, code codes.Code, seed int64) FaultFunc {
	var mu sync.Mutex
	rnd := rand.New(rand.NewSource(seed))
	return func(*bigtablepb.MutateRowsRequest_Entry) error {
		mu.Lock()
		fail := rnd.Float64() < rate
		mu.Unlock()
		if fail {
			return status.Error(code, "injected failure")
		}
		return nil
	}
}

// EmulatorServer serves Bigtable MutateRows from a MemoryTable.
type EmulatorServer struct {
	bigtablepb.UnimplementedBigtableServer

	table     *MemoryTable
	chunkSize int
	logger    log.Logger

	mu    sync.RWMutex
	fault FaultFunc
}

// NewEmulatorServer creates a server backed by table.
// Only WithChunkSize and WithLogger apply.
func NewEmulatorServer(table *MemoryTable, opts ...Option) *EmulatorServer {
	o := applyOptions(opts)
	return &EmulatorServer{
		table:     table,
		chunkSize: o.chunkSize,
		logger:    o.logger,
	}
}

// SetFault installs f to fail selected entries. A nil f clears it.
func (s *EmulatorServer) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// MutateRows applies each entry and streams per-entry statuses.
func (s *EmulatorServer) MutateRows(req *bigtablepb.MutateRowsRequest, stream bigtablepb.Bigtable_MutateRowsServer) error {
	if req.GetTableName() == "" {
		return status.Error(codes.InvalidArgument, "table_name is required")
	}
	if len(req.GetEntries()) == 0 {
		return status.Error(codes.InvalidArgument, "no entries in request")
	}

	s.mu.RLock()
	fault := s.fault
	s.mu.RUnlock()

	resp := &bigtablepb.MutateRowsResponse{}
	for i, e := range req.GetEntries() {
		var err error
		if fault != nil {
			err = fault(e)
		}
		if err == nil {
			err = s.table.Apply(e)
		}
		resp.Entries = append(resp.Entries, &bigtablepb.MutateRowsResponse_Entry{
			Index:  int64(i),
			Status: status.Convert(err).Proto(),
		})
		if len(resp.Entries) == s.chunkSize {
			if err := stream.Send(resp); err != nil {
				return err
			}
			resp = &bigtablepb.MutateRowsResponse{}
		}
	}
	if len(resp.Entries) > 0 {
		return stream.Send(resp)
	}
	return nil
}

// Register adds the service to g.
func (s *EmulatorServer) Register(g *grpc.Server) {
	bigtablepb.RegisterBigtableServer(g, s)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *EmulatorServer) Serve(ctx context.Context, lis net.Listener) error {
	g := grpc.NewServer(grpc.MaxRecvMsgSize(MaxMessageBytes))
	s.Register(g)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			g.GracefulStop()
		case <-done:
		}
	}()

	s.logger.Info("emulator listening", log.String("addr", lis.Addr().String()))
	if err := g.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
