package tasks

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TaskFunc is a unit of batch work over a chunk of addon ids.
type TaskFunc func(ctx context.Context, ids []uint) error

// Dispatcher splits id lists into chunks and runs them with bounded
// concurrency. It stands in for the external task queue: each chunk is
// one retryable unit of work.
type Dispatcher struct {
	chunkSize   int
	concurrency int
	logger      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with the given chunking policy
func NewDispatcher(chunkSize, concurrency int, logger zerolog.Logger) *Dispatcher {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		chunkSize:   chunkSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Dispatch runs fn over ids in chunks. The first chunk error cancels
// the remaining chunks and is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []uint, name string, fn TaskFunc) error {
	chunks := chunkIDs(ids, d.chunkSize)

	d.logger.Info().
		Str("task", name).
		Int("ids", len(ids)).
		Int("chunks", len(chunks)).
		Msg("Dispatching task")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			if err := fn(ctx, chunk); err != nil {
				d.logger.Error().
					Err(err).
					Str("task", name).
					Int("chunk_size", len(chunk)).
					Msg("Task chunk failed")
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []uint, size int) [][]uint {
	if len(ids) == 0 {
		return nil
	}

	var chunks [][]uint
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
