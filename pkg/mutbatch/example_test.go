package mutbatch_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/mutbatch/pkg/mutbatch"
	"github.com/bft-labs/mutbatch/pkg/transport"
)

func ExampleNew() {
	dir, _ := os.MkdirTemp("", "mutbatch-example")
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "rows.jsonl")
	_ = os.WriteFile(input, []byte(`{"row":"user#1","mutations":[{"type":"set_cell","family":"cf","column":"name","value":"ada"}]}`+"\n"), 0o600)

	table := transport.NewMemoryTable()
	applier := transport.NewMemoryApplier(table)

	svc, err := mutbatch.New(mutbatch.Config{InputPath: input}, mutbatch.WithApplier(applier))
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		fmt.Println(err)
		return
	}
	if err := svc.Wait(ctx); err != nil {
		fmt.Println(err)
		return
	}
	applier.Wait()

	cell, _ := table.Cell("user#1", "cf", "name")
	fmt.Println(svc.Status(), svc.Progress().Succeeded, string(cell.Value))
	// Output: Stopped 1 ada
}
