package source

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvflow/internal/codec"
)

// PrefetchOptions tunes the bounded hand-off queue.
type PrefetchOptions struct {
	// FetchLimit caps the queue at FetchLimit*2+10 when positive.
	FetchLimit int
}

// queueCap is min(fetchLimit*2+10, 2*fetchHint+10); with no row limit the
// hint alone decides.
func queueCap(fetchLimit, fetchHint int) int {
	byHint := 2*fetchHint + 10
	if fetchLimit <= 0 {
		return byHint
	}
	byLimit := fetchLimit*2 + 10
	if byLimit < byHint {
		return byLimit
	}
	return byHint
}

// StartPrefetch runs one background producer that pulls raw rows into a
// bounded FIFO queue while the calling goroutine drains it, encodes each
// row and hands it to cb. Row order is exactly cursor order.
//
// The producer checks the cancellation token before every cursor advance
// and on every queue offer; cancellation closes the cursor and surfaces
// ErrAborted. The first producer error is latched, the queue is closed as
// the EOF sentinel, and the error is rethrown here after the consumer
// drains and the producer is joined. A consumer error stops the producer
// on its next check.
func (s *Source) StartPrefetch(ctx context.Context, cd *codec.Codec, cb func([]any) error, opts PrefetchOptions) error {
	rows := make(chan []any, queueCap(opts.FetchLimit, s.fetchHint))
	stop := make(chan struct{}) // closed when the consumer gives up

	var g errgroup.Group
	g.Go(func() error {
		defer close(rows)
		for {
			if ctx.Err() != nil {
				_ = s.Close()
				return ErrAborted
			}
			select {
			case <-stop:
				_ = s.Close()
				return nil
			default:
			}
			row, err := s.NextRaw()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case rows <- row:
			case <-ctx.Done():
				_ = s.Close()
				return ErrAborted
			case <-stop:
				_ = s.Close()
				return nil
			}
		}
	})

	var consumeErr error
	for row := range rows {
		if consumeErr != nil {
			continue // drain so the producer is never stuck on a full queue
		}
		encoded, err := cd.EncodeRow(row, s.desc)
		if err == nil {
			err = cb(encoded)
		}
		if err != nil {
			consumeErr = err
			close(stop)
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return consumeErr
}
