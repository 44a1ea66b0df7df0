package providers

import (
	"context"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
)

// Stream is a continuous barcode feed opened by BarcodeSource.Subscribe.
// Acquisition is demand-driven: the producer performs exactly one request
// per RequestSingle call, so at most one acquisition is outstanding and
// nothing is read ahead of the consumer.
type Stream struct {
	demand chan struct{}
	values chan Acquisition
	done   chan struct{}
	cancel context.CancelFunc
}

// NewPullStream opens a stream over a one-shot requester. The stream ends
// after the first error, when Stop is called, or when ctx is done.
func NewPullStream(ctx context.Context, r BarcodeRequester) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		demand: make(chan struct{}),
		values: make(chan Acquisition),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.pull(ctx, r)
	return s
}

func (s *Stream) pull(ctx context.Context, r BarcodeRequester) {
	defer close(s.done)
	for {
		select {
		case <-s.demand:
		case <-ctx.Done():
			return
		}
		b, err := r.RequestSingle(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case s.values <- Acquisition{Barcode: b, Err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// RequestSingle asks the producer for the next barcode and waits for it.
// A value acquired for a request whose caller gave up is delivered to the
// next request instead of triggering another acquisition. A stream that
// has ended reports ErrCancelled.
func (s *Stream) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	if err := ctx.Err(); err != nil {
		return barcode.Barcode{}, err
	}
	select {
	case acq := <-s.values:
		return acq.Barcode, acq.Err
	case s.demand <- struct{}{}:
	case <-s.done:
		return barcode.Barcode{}, ErrCancelled
	case <-ctx.Done():
		return barcode.Barcode{}, ctx.Err()
	}
	select {
	case acq := <-s.values:
		return acq.Barcode, acq.Err
	case <-s.done:
		return barcode.Barcode{}, ErrCancelled
	case <-ctx.Done():
		return barcode.Barcode{}, ctx.Err()
	}
}

// Stop ends the stream. A request parked in the underlying source is
// cancelled through its context; Stop does not wait for it.
func (s *Stream) Stop() {
	s.cancel()
}

// Done is closed once the producer has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
