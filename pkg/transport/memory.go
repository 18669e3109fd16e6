package transport

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Cell is one timestamped value.
type Cell struct {
	Timestamp int64
	Value     []byte
}

// columns maps column qualifier to cells, newest first.
type columns map[string][]Cell

// MemoryTable is an in-process sparse table: row -> family -> column -> cells.
type MemoryTable struct {
	mu   sync.RWMutex
	rows map[string]map[string]columns
	now  func() time.Time
}

// NewMemoryTable creates an empty table.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		rows: make(map[string]map[string]columns),
		now:  time.Now,
	}
}

// Apply applies every mutation of entry atomically. The entry is validated
// first so a bad mutation leaves the row untouched.
func (t *MemoryTable) Apply(entry *bigtablepb.MutateRowsRequest_Entry) error {
	if len(entry.GetRowKey()) == 0 {
		return status.Error(codes.InvalidArgument, "row key must not be empty")
	}
	if len(entry.GetMutations()) == 0 {
		return status.Error(codes.InvalidArgument, "no mutations for row")
	}
	for _, m := range entry.GetMutations() {
		if err := validateMutation(m); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := string(entry.GetRowKey())
	for _, m := range entry.GetMutations() {
		switch {
		case m.GetSetCell() != nil:
			t.setCell(key, m.GetSetCell())
		case m.GetDeleteFromColumn() != nil:
			t.deleteFromColumn(key, m.GetDeleteFromColumn())
		case m.GetDeleteFromFamily() != nil:
			if fams, ok := t.rows[key]; ok {
				delete(fams, m.GetDeleteFromFamily().GetFamilyName())
				t.dropIfEmpty(key)
			}
		case m.GetDeleteFromRow() != nil:
			delete(t.rows, key)
		}
	}
	return nil
}

func validateMutation(m *bigtablepb.Mutation) error {
	switch {
	case m.GetSetCell() != nil:
		if m.GetSetCell().GetFamilyName() == "" {
			return status.Error(codes.InvalidArgument, "set_cell requires a family name")
		}
	case m.GetDeleteFromColumn() != nil:
		if m.GetDeleteFromColumn().GetFamilyName() == "" {
			return status.Error(codes.InvalidArgument, "delete_from_column requires a family name")
		}
	case m.GetDeleteFromFamily() != nil:
		if m.GetDeleteFromFamily().GetFamilyName() == "" {
			return status.Error(codes.InvalidArgument, "delete_from_family requires a family name")
		}
	case m.GetDeleteFromRow() != nil:
	default:
		return status.Error(codes.Unimplemented, "unsupported mutation type")
	}
	return nil
}

// setCell must be called with t.mu held.
func (t *MemoryTable) setCell(key string, sc *bigtablepb.Mutation_SetCell) {
	ts := sc.GetTimestampMicros()
	if ts < 0 {
		// Server-assigned timestamps have millisecond granularity.
		ts = t.now().UnixMilli() * 1000
	}
	fams, ok := t.rows[key]
	if !ok {
		fams = make(map[string]columns)
		t.rows[key] = fams
	}
	cols, ok := fams[sc.GetFamilyName()]
	if !ok {
		cols = make(columns)
		fams[sc.GetFamilyName()] = cols
	}
	col := string(sc.GetColumnQualifier())
	cells := cols[col]
	value := append([]byte(nil), sc.GetValue()...)
	for i := range cells {
		if cells[i].Timestamp == ts {
			cells[i].Value = value
			return
		}
	}
	cells = append(cells, Cell{Timestamp: ts, Value: value})
	sort.Slice(cells, func(i, j int) bool { return cells[i].Timestamp > cells[j].Timestamp })
	cols[col] = cells
}

// deleteFromColumn must be called with t.mu held.
func (t *MemoryTable) deleteFromColumn(key string, dc *bigtablepb.Mutation_DeleteFromColumn) {
	cols, ok := t.rows[key][dc.GetFamilyName()]
	if !ok {
		return
	}
	col := string(dc.GetColumnQualifier())
	tr := dc.GetTimeRange()
	if tr == nil {
		delete(cols, col)
	} else {
		kept := cols[col][:0]
		for _, c := range cols[col] {
			inRange := c.Timestamp >= tr.GetStartTimestampMicros() &&
				(tr.GetEndTimestampMicros() == 0 || c.Timestamp < tr.GetEndTimestampMicros())
			if !inRange {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(cols, col)
		} else {
			cols[col] = kept
		}
	}
	if len(cols) == 0 {
		delete(t.rows[key], dc.GetFamilyName())
	}
	t.dropIfEmpty(key)
}

func (t *MemoryTable) dropIfEmpty(key string) {
	if len(t.rows[key]) == 0 {
		delete(t.rows, key)
	}
}

// Cell returns the newest cell of row family:column.
func (t *MemoryTable) Cell(row, family, column string) (Cell, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cells := t.rows[row][family][column]
	if len(cells) == 0 {
		return Cell{}, false
	}
	c := cells[0]
	c.Value = append([]byte(nil), c.Value...)
	return c, true
}

// Cells returns every cell of row family:column, newest first.
func (t *MemoryTable) Cells(row, family, column string) []Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()

	src := t.rows[row][family][column]
	out := make([]Cell, len(src))
	for i, c := range src {
		out[i] = Cell{Timestamp: c.Timestamp, Value: append([]byte(nil), c.Value...)}
	}
	return out
}

// HasRow reports whether row holds any cell.
func (t *MemoryTable) HasRow(row string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[row]
	return ok
}

// RowCount returns the number of non-empty rows.
func (t *MemoryTable) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// MemoryApplier implements BulkApplier on top of a MemoryTable.
type MemoryApplier struct {
	table *MemoryTable
	opts  options

	rndMu sync.Mutex
	rnd   *rand.Rand

	wg sync.WaitGroup
}

// NewMemoryApplier creates an applier writing into table.
func NewMemoryApplier(table *MemoryTable, opts ...Option) *MemoryApplier {
	o := applyOptions(opts)
	return &MemoryApplier{
		table: table,
		opts:  o,
		rnd:   rand.New(rand.NewSource(o.seed)),
	}
}

// AsyncBulkApply applies entries on a new goroutine.
func (a *MemoryApplier) AsyncBulkApply(ctx context.Context, entries []*bigtablepb.MutateRowsRequest_Entry, cb Callbacks) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		bulkApply(ctx, "memory", a.opts.policy, a.opts.logger, entries, cb, a.attempt)
	}()
}

// Wait blocks until every in-flight call has delivered its last callback.
func (a *MemoryApplier) Wait() {
	a.wg.Wait()
}

func (a *MemoryApplier) attempt(ctx context.Context, entries []*bigtablepb.MutateRowsRequest_Entry, report func([]*bigtablepb.MutateRowsResponse_Entry)) error {
	if a.opts.latency > 0 {
		t := time.NewTimer(a.opts.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return status.FromContextError(ctx.Err()).Err()
		case <-t.C:
		}
	}

	chunk := make([]*bigtablepb.MutateRowsResponse_Entry, 0, a.opts.chunkSize)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		st := status.New(codes.OK, "")
		if a.injectFailure() {
			st = status.New(a.opts.failureCode, "injected failure")
		} else if err := a.table.Apply(e); err != nil {
			st = status.Convert(err)
		}
		chunk = append(chunk, &bigtablepb.MutateRowsResponse_Entry{Index: int64(i), Status: st.Proto()})
		if len(chunk) == a.opts.chunkSize {
			report(chunk)
			chunk = make([]*bigtablepb.MutateRowsResponse_Entry, 0, a.opts.chunkSize)
		}
	}
	if len(chunk) > 0 {
		report(chunk)
	}
	return nil
}

func (a *MemoryApplier) injectFailure() bool {
	if a.opts.failureRate <= 0 {
		return false
	}
	a.rndMu.Lock()
	defer a.rndMu.Unlock()
	return a.rnd.Float64() < a.opts.failureRate
}
