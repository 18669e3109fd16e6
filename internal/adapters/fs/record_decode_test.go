package fs

import (
	"errors"
	"testing"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/testing/protocmp"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/mutation"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
		want mutation.SingleRowMutation
	}{
		{
			name: "set cell with server time",
			line: `{"row":"user#1","mutations":[{"type":"set_cell","family":"cf","column":"name","value":"ada"}]}`,
			want: mutation.NewSingleRowMutation("user#1",
				mutation.SetCell("cf", "name", mutation.ServerTime, []byte("ada"))),
		},
		{
			name: "set cell with timestamp and base64",
			line: `{"row_base64":"AAE=","mutations":[{"type":"set_cell","family":"cf","column":"b","value_base64":"/w==","timestamp_micros":1000}]}`,
			want: mutation.SingleRowMutation{
				RowKey:    []byte{0, 1},
				Mutations: []*bigtablepb.Mutation{mutation.SetCell("cf", "b", 1000, []byte{0xff})},
			},
		},
		{
			name: "deletes",
			line: `{"row":"r","mutations":[
				{"type":"delete_column","family":"cf","column":"a"},
				{"type":"delete_column","family":"cf","column":"a","start_micros":10,"end_micros":20},
				{"type":"delete_family","family":"tmp"},
				{"type":"delete_row"}]}`,
			want: mutation.NewSingleRowMutation("r",
				mutation.DeleteFromColumn("cf", "a"),
				mutation.DeleteFromColumnRange("cf", "a", 10, 20),
				mutation.DeleteFromFamily("tmp"),
				mutation.DeleteFromRow(),
			),
		},
		{
			name: "no mutations",
			line: `{"row":"r","mutations":[]}`,
			want: mutation.SingleRowMutation{RowKey: []byte("r")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRecord([]byte(tt.line))
			if err != nil {
				t.Fatalf("DecodeRecord() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, protocmp.Transform(), cmp.Comparer(func(a, b []byte) bool {
				return string(a) == string(b)
			})); diff != "" {
				t.Errorf("DecodeRecord() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", `{"row":`},
		{"missing row", `{"mutations":[{"type":"delete_row"}]}`},
		{"bad row base64", `{"row_base64":"!!","mutations":[{"type":"delete_row"}]}`},
		{"unknown type", `{"row":"r","mutations":[{"type":"increment"}]}`},
		{"set cell without family", `{"row":"r","mutations":[{"type":"set_cell","column":"c"}]}`},
		{"bad value base64", `{"row":"r","mutations":[{"type":"set_cell","family":"f","value_base64":"!!"}]}`},
		{"inverted range", `{"row":"r","mutations":[{"type":"delete_column","family":"f","column":"c","start_micros":20,"end_micros":10}]}`},
		{"delete family without family", `{"row":"r","mutations":[{"type":"delete_family"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(tt.line))
			if !errors.Is(err, domain.ErrInvalidRecord) {
				t.Errorf("DecodeRecord() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}
