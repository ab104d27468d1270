package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aryankumar/sfs/internal/invoke"
)

// BenchmarkMap_Local benchmarks submission and completion with different worker counts
func BenchmarkMap_Local(b *testing.B) {
	workerCounts := []int{1, 2, 4, 8, 16}
	units := makeUnits(100)

	for _, workers := range workerCounts {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			backend := NewLocalBackend(echoCompute, workers, WithLogger(quietLogger))
			ex := New(quietLogger, nil)

			for i := 0; i < b.N; i++ {
				batch, err := ex.Map(context.Background(), units, backend)
				if err != nil {
					b.Fatal(err)
				}
				for _, h := range batch.Handles() {
					<-h.Done()
				}
				batch.Cancel()
			}
		})
	}
}

// BenchmarkMap_Remote benchmarks the remote backend over the loopback invoker
func BenchmarkMap_Remote(b *testing.B) {
	loop := invoke.NewLoopback(invoke.DefaultFunctionName, invoke.Handler(echoCompute))
	backend, err := NewRemoteBackend(loop, DefaultRemoteConfig(), WithLogger(quietLogger))
	if err != nil {
		b.Fatal(err)
	}
	ex := New(quietLogger, nil)
	units := makeUnits(200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch, err := ex.Map(context.Background(), units, backend)
		if err != nil {
			b.Fatal(err)
		}
		for _, h := range batch.Handles() {
			<-h.Done()
		}
		batch.Cancel()
	}
}

// BenchmarkBatch_Done benchmarks the progress poll over a large batch
func BenchmarkBatch_Done(b *testing.B) {
	handles := make([]*Handle, 1000)
	for i := range handles {
		var err error
		if i%2 == 0 {
			err = errors.New("error")
		}
		handles[i] = resolvedHandle(fmt.Sprintf("item-%d", i), err, 1, time.Duration(i)*time.Millisecond)
	}
	batch := newBatch(context.Background(), func() {}, "bench", "local", handles)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		batch.Done()
	}
}

// BenchmarkResult_Reducers benchmarks handle filtering and summary operations
func BenchmarkResult_Reducers(b *testing.B) {
	handles := make([]*Handle, 1000)
	for i := range handles {
		var err error
		if i%2 == 0 {
			err = fmt.Errorf("error %d", i)
		}
		handles[i] = resolvedHandle(fmt.Sprintf("item-%d", i), err, 1, time.Duration(i)*time.Millisecond)
	}

	b.Run("FilterFailed", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			FilterFailed(handles)
		}
	})

	b.Run("CountCompleted", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			CountCompleted(handles)
		}
	})

	b.Run("Summarize", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			Summarize(handles)
		}
	})
}
