package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ormasoftchile/scanflow/pkg/barcode"
)

// countingRequester answers every request with the next number and records
// how many requests were made and how many overlapped.
type countingRequester struct {
	mu          sync.Mutex
	calls       int
	inflight    int
	maxInflight int
}

func (c *countingRequester) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	c.mu.Lock()
	c.calls++
	c.inflight++
	if c.inflight > c.maxInflight {
		c.maxInflight = c.inflight
	}
	n := c.calls
	c.mu.Unlock()
	time.Sleep(time.Millisecond)
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
	return barcode.Barcode{Text: string(rune('0' + n%10))}, nil
}

func (c *countingRequester) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestStream(t *testing.T) {
	sc := NewScenarioCollector(&Scenario{Barcodes: []ScenarioAnswer{{Text: "1"}, {Text: "2"}}})
	s := sc.Subscribe(context.Background())
	defer s.Stop()

	ctx := context.Background()
	var got []string
	for {
		b, err := s.RequestSingle(ctx)
		if err != nil {
			if !errors.Is(err, ErrCancelled) {
				t.Errorf("terminal err = %v", err)
			}
			break
		}
		got = append(got, b.Text)
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("got %v", got)
	}
	if _, err := s.RequestSingle(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("request after end = %v, want cancelled", err)
	}
}

func TestStream_AcquiresOnDemand(t *testing.T) {
	src := &countingRequester{}
	s := NewPullStream(context.Background(), src)
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	if n := src.Calls(); n != 0 {
		t.Fatalf("requests before any demand = %d, want 0", n)
	}
	for i := 1; i <= 3; i++ {
		if _, err := s.RequestSingle(context.Background()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
		if n := src.Calls(); n != i {
			t.Fatalf("after %d consumed values requests = %d", i, n)
		}
	}
	if src.maxInflight != 1 {
		t.Errorf("max outstanding requests = %d, want 1", src.maxInflight)
	}
}

func TestStream_Stop(t *testing.T) {
	d := &DryRunCollector{Barcodes: 1000}
	s := d.Subscribe(context.Background())
	if _, err := s.RequestSingle(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	<-s.Done()
	if _, err := s.RequestSingle(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("request after stop = %v, want cancelled", err)
	}
}

func TestStream_ContextCancelled(t *testing.T) {
	s := NewPullStream(context.Background(), &countingRequester{})
	defer s.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.RequestSingle(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// gatedRequester blocks each request until released.
type gatedRequester struct {
	release chan barcode.Barcode
	calls   int
	mu      sync.Mutex
}

func (g *gatedRequester) RequestSingle(ctx context.Context) (barcode.Barcode, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	select {
	case b := <-g.release:
		return b, nil
	case <-ctx.Done():
		return barcode.Barcode{}, ctx.Err()
	}
}

func TestStream_AbandonedValueGoesToNextRequest(t *testing.T) {
	src := &gatedRequester{release: make(chan barcode.Barcode)}
	s := NewPullStream(context.Background(), src)
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.RequestSingle(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}
	src.release <- barcode.Barcode{Text: "late"}

	b, err := s.RequestSingle(context.Background())
	if err != nil || b.Text != "late" {
		t.Fatalf("next request = %+v, %v; want the pending value", b, err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.calls != 1 {
		t.Errorf("requests = %d, want 1", src.calls)
	}
}
