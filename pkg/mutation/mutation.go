// Package mutation builds single-row mutations for Bigtable-style sparse
// tables and converts them into MutateRows request entries.
package mutation

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"google.golang.org/protobuf/proto"
)

// ServerTime asks the server to assign the cell timestamp.
const ServerTime int64 = -1

// SetCell writes value into family:column at timestamp ts (microseconds).
func SetCell(family, column string, ts int64, value []byte) *bigtablepb.Mutation {
	return &bigtablepb.Mutation{Mutation: &bigtablepb.Mutation_SetCell_{
		SetCell: &bigtablepb.Mutation_SetCell{
			FamilyName:      family,
			ColumnQualifier: []byte(column),
			TimestampMicros: ts,
			Value:           value,
		},
	}}
}

// DeleteFromColumn deletes every cell in family:column.
func DeleteFromColumn(family, column string) *bigtablepb.Mutation {
	return &bigtablepb.Mutation{Mutation: &bigtablepb.Mutation_DeleteFromColumn_{
		DeleteFromColumn: &bigtablepb.Mutation_DeleteFromColumn{
			FamilyName:      family,
			ColumnQualifier: []byte(column),
		},
	}}
}

// DeleteFromColumnRange deletes cells in family:column with timestamps in
// [start, end). A zero end means unbounded.
func DeleteFromColumnRange(family, column string, start, end int64) *bigtablepb.Mutation {
	return &bigtablepb.Mutation{Mutation: &bigtablepb.Mutation_DeleteFromColumn_{
		DeleteFromColumn: &bigtablepb.Mutation_DeleteFromColumn{
			FamilyName:      family,
			ColumnQualifier: []byte(column),
			TimeRange: &bigtablepb.TimestampRange{
				StartTimestampMicros: start,
				EndTimestampMicros:   end,
			},
		},
	}}
}

// DeleteFromFamily deletes every cell of family in the row.
func DeleteFromFamily(family string) *bigtablepb.Mutation {
	return &bigtablepb.Mutation{Mutation: &bigtablepb.Mutation_DeleteFromFamily_{
		DeleteFromFamily: &bigtablepb.Mutation_DeleteFromFamily{FamilyName: family},
	}}
}

// DeleteFromRow deletes the whole row.
func DeleteFromRow() *bigtablepb.Mutation {
	return &bigtablepb.Mutation{Mutation: &bigtablepb.Mutation_DeleteFromRow_{
		DeleteFromRow: &bigtablepb.Mutation_DeleteFromRow{},
	}}
}

// SingleRowMutation is a set of cell mutations applied atomically to one row.
type SingleRowMutation struct {
	RowKey    []byte
	Mutations []*bigtablepb.Mutation
}

// NewSingleRowMutation creates a mutation for rowKey with the given cell mutations.
func NewSingleRowMutation(rowKey string, muts ...*bigtablepb.Mutation) SingleRowMutation {
	return SingleRowMutation{RowKey: []byte(rowKey), Mutations: muts}
}

// Add appends cell mutations.
func (m *SingleRowMutation) Add(muts ...*bigtablepb.Mutation) {
	m.Mutations = append(m.Mutations, muts...)
}

// Len returns the number of cell mutations.
func (m SingleRowMutation) Len() int {
	return len(m.Mutations)
}

// Entry converts the mutation into a MutateRows request entry.
// The entry shares the underlying mutation messages.
func (m SingleRowMutation) Entry() *bigtablepb.MutateRowsRequest_Entry {
	return &bigtablepb.MutateRowsRequest_Entry{
		RowKey:    m.RowKey,
		Mutations: m.Mutations,
	}
}

// Size returns the serialized size of an entry in bytes.
func Size(entry *bigtablepb.MutateRowsRequest_Entry) int64 {
	return int64(proto.Size(entry))
}
