package upload

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hanshuebner/odt-uploader/internal/testutil/testlog"
	"github.com/hanshuebner/odt-uploader/internal/transport"
)

var errSink = errors.New("sink: refused")

// sinkPort swallows writes and never produces input.
type sinkPort struct {
	data   []byte
	failAt int // 1-based write ordinal to refuse, 0 never
}

var _ transport.Port = (*sinkPort)(nil)

func (p *sinkPort) WriteByte(b byte) error {
	if p.failAt > 0 && len(p.data)+1 == p.failAt {
		return errSink
	}
	p.data = append(p.data, b)
	return nil
}

func (p *sinkPort) Write(buf []byte) (int, error) {
	for i, b := range buf {
		if err := p.WriteByte(b); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

func (p *sinkPort) ReadByte(timeout time.Duration) (byte, error) {
	return 0, transport.ErrReadTimeout
}

func (p *sinkPort) Close() error { return nil }

func TestPumpStreamsEverythingInOrder(t *testing.T) {
	testlog.Start(t)
	sink := &sinkPort{}
	var counts []int
	pump := &Pump{Port: sink, Progress: func(written, total int) {
		counts = append(counts, written)
	}}
	data := pattern(300)
	if err := pump.Stream(context.Background(), data); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if !bytes.Equal(sink.data, data) {
		t.Fatalf("sink content differs from payload")
	}
	if len(counts) != len(data) {
		t.Fatalf("progress calls: %d, want %d", len(counts), len(data))
	}
	for i, c := range counts {
		if c != i+1 {
			t.Fatalf("progress not monotonic at call %d: %d", i, c)
		}
	}
}

func TestPumpSurfacesWriteFault(t *testing.T) {
	testlog.Start(t)
	sink := &sinkPort{failAt: 10}
	pump := &Pump{Port: sink}
	err := pump.Stream(context.Background(), pattern(32))
	if !errors.Is(err, errSink) {
		t.Fatalf("expected sink fault, got %v", err)
	}
	if len(sink.data) != 9 {
		t.Fatalf("bytes accepted before fault: %d, want 9", len(sink.data))
	}
}

func TestPumpHonorsCancelledContext(t *testing.T) {
	testlog.Start(t)
	sink := &sinkPort{}
	pump := &Pump{Port: sink}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pump.Stream(ctx, pattern(8)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(sink.data) != 0 {
		t.Fatalf("wrote %d bytes after cancellation", len(sink.data))
	}
}
