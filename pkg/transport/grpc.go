package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	_ "google.golang.org/grpc/encoding/gzip" // Register gzip compressor
)

// TableName identifies a Bigtable table.
type TableName struct {
	Project  string
	Instance string
	Table    string
}

// String returns the fully qualified name used in requests.
func (t TableName) String() string {
	return fmt.Sprintf("projects/%s/instances/%s/tables/%s", t.Project, t.Instance, t.Table)
}

// ParseTableName parses "projects/P/instances/I/tables/T".
func ParseTableName(s string) (TableName, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 || parts[0] != "projects" || parts[2] != "instances" || parts[4] != "tables" {
		return TableName{}, fmt.Errorf("invalid table name %q: want projects/P/instances/I/tables/T", s)
	}
	t := TableName{Project: parts[1], Instance: parts[3], Table: parts[5]}
	if t.Project == "" || t.Instance == "" || t.Table == "" {
		return TableName{}, fmt.Errorf("invalid table name %q: empty component", s)
	}
	return t, nil
}

// Dial creates a client connection sized for MaxMessageBytes requests.
// insecureConn disables TLS, as used by the emulator.
func Dial(endpoint string, insecureConn bool) (*grpc.ClientConn, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if insecureConn {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(MaxMessageBytes),
			grpc.MaxCallRecvMsgSize(MaxMessageBytes),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return conn, nil
}

// BigtableApplier implements BulkApplier with the Bigtable MutateRows RPC.
type BigtableApplier struct {
	client bigtablepb.BigtableClient
	table  string
	opts   options

	wg sync.WaitGroup
}

// NewBigtableApplier creates an applier writing to table over conn.
func NewBigtableApplier(conn grpc.ClientConnInterface, table TableName, opts ...Option) *BigtableApplier {
	return &BigtableApplier{
		client: bigtablepb.NewBigtableClient(conn),
		table:  table.String(),
		opts:   applyOptions(opts),
	}
}

// AsyncBulkApply sends entries on a new goroutine.
func (a *BigtableApplier) AsyncBulkApply(ctx context.Context, entries []*bigtablepb.MutateRowsRequest_Entry, cb Callbacks) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		bulkApply(ctx, "grpc", a.opts.policy, a.opts.logger, entries, cb, a.attempt)
	}()
}

// Wait blocks until every in-flight call has delivered its last callback.
func (a *BigtableApplier) Wait() {
	a.wg.Wait()
}

func (a *BigtableApplier) attempt(ctx context.Context, entries []*bigtablepb.MutateRowsRequest_Entry, report func([]*bigtablepb.MutateRowsResponse_Entry)) error {
	if a.opts.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.attemptTimeout)
		defer cancel()
	}

	req := &bigtablepb.MutateRowsRequest{
		TableName:    a.table,
		AppProfileId: a.opts.appProfile,
		Entries:      entries,
	}
	var callOpts []grpc.CallOption
	if a.opts.compressor != "" {
		callOpts = append(callOpts, grpc.UseCompressor(a.opts.compressor))
	}

	stream, err := a.client.MutateRows(ctx, req, callOpts...)
	if err != nil {
		return err
	}
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		report(resp.GetEntries())
	}
}
