package mapbatch_test

import (
	"context"
	"fmt"
	"log"

	"github.com/streamkit/mapbatch"
	"github.com/streamkit/mapbatch/tensor"
)

func ExampleNewDataset() {
	src, err := mapbatch.NewRangeDataset(0, 7, 1)
	if err != nil {
		log.Fatal(err)
	}

	square := mapbatch.NewCapturedFunction(
		func(_ context.Context, in mapbatch.Element) (mapbatch.Element, error) {
			v := in[0].Int64s()[0]
			return mapbatch.Element{tensor.ScalarInt64(v * v)}, nil
		})

	ds, err := mapbatch.NewDataset(src, square, 3, mapbatch.WithNumParallelCalls(6))
	if err != nil {
		log.Fatal(err)
	}

	it, err := ds.MakeIterator("example")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = it.Close() }()

	for {
		batch, endOfSequence, err := it.GetNext(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		if endOfSequence {
			break
		}
		fmt.Println(batch[0].Int64s())
	}

	// Output:
	// [0 1 4]
	// [9 16 25]
	// [36]
}
