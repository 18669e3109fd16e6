package fs

import (
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/goccy/go-json"

	"github.com/bft-labs/mutbatch/internal/domain"
	"github.com/bft-labs/mutbatch/pkg/mutation"
)

// Mutation types accepted in input records.
const (
	TypeSetCell      = "set_cell"
	TypeDeleteColumn = "delete_column"
	TypeDeleteFamily = "delete_family"
	TypeDeleteRow    = "delete_row"
)

// recordJSON is one input line.
type recordJSON struct {
	Row       string         `json:"row"`
	RowBase64 string         `json:"row_base64"`
	Mutations []mutationJSON `json:"mutations"`
}

type mutationJSON struct {
	Type            string `json:"type"`
	Family          string `json:"family"`
	Column          string `json:"column"`
	Value           string `json:"value"`
	ValueBase64     string `json:"value_base64"`
	TimestampMicros *int64 `json:"timestamp_micros"`
	StartMicros     int64  `json:"start_micros"`
	EndMicros       int64  `json:"end_micros"`
}

// DecodeRecord parses one JSON line into a row mutation. Errors wrap
// domain.ErrInvalidRecord. A record with no mutations decodes; the
// batcher rejects it.
func DecodeRecord(line []byte) (mutation.SingleRowMutation, error) {
	var rec recordJSON
	if err := json.Unmarshal(line, &rec); err != nil {
		return mutation.SingleRowMutation{}, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}

	row := []byte(rec.Row)
	if rec.RowBase64 != "" {
		b, err := base64.StdEncoding.DecodeString(rec.RowBase64)
		if err != nil {
			return mutation.SingleRowMutation{}, fmt.Errorf("%w: row_base64: %v", domain.ErrInvalidRecord, err)
		}
		row = b
	}
	if len(row) == 0 {
		return mutation.SingleRowMutation{}, fmt.Errorf("%w: row is required", domain.ErrInvalidRecord)
	}

	m := mutation.SingleRowMutation{RowKey: row}
	for i, mj := range rec.Mutations {
		pb, err := mj.toProto()
		if err != nil {
			return mutation.SingleRowMutation{}, fmt.Errorf("%w: mutation %d: %v", domain.ErrInvalidRecord, i, err)
		}
		m.Add(pb)
	}
	return m, nil
}

func (mj mutationJSON) toProto() (*bigtablepb.Mutation, error) {
	switch mj.Type {
	case TypeSetCell:
		if mj.Family == "" {
			return nil, fmt.Errorf("set_cell requires family")
		}
		value := []byte(mj.Value)
		if mj.ValueBase64 != "" {
			b, err := base64.StdEncoding.DecodeString(mj.ValueBase64)
			if err != nil {
				return nil, fmt.Errorf("value_base64: %v", err)
			}
			value = b
		}
		ts := mutation.ServerTime
		if mj.TimestampMicros != nil {
			ts = *mj.TimestampMicros
		}
		return mutation.SetCell(mj.Family, mj.Column, ts, value), nil

	case TypeDeleteColumn:
		if mj.Family == "" {
			return nil, fmt.Errorf("delete_column requires family")
		}
		if mj.StartMicros == 0 && mj.EndMicros == 0 {
			return mutation.DeleteFromColumn(mj.Family, mj.Column), nil
		}
		if mj.EndMicros != 0 && mj.EndMicros < mj.StartMicros {
			return nil, fmt.Errorf("delete_column end %d before start %d", mj.EndMicros, mj.StartMicros)
		}
		return mutation.DeleteFromColumnRange(mj.Family, mj.Column, mj.StartMicros, mj.EndMicros), nil

	case TypeDeleteFamily:
		if mj.Family == "" {
			return nil, fmt.Errorf("delete_family requires family")
		}
		return mutation.DeleteFromFamily(mj.Family), nil

	case TypeDeleteRow:
		return mutation.DeleteFromRow(), nil

	default:
		return nil, fmt.Errorf("unknown mutation type %q", mj.Type)
	}
}
