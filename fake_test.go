package bitmap

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSource is a request key whose stream is its own name.
type fakeSource struct {
	name string
}

func (s fakeSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(s.name)), nil
}

// brokenSource is a request key that cannot be opened.
type brokenSource struct{}

func (brokenSource) Open(context.Context) (io.ReadCloser, error) {
	return nil, errBrokenSource
}

var errBrokenSource = errors.New("source unavailable")

// fakeDecoder serves synthetic images by source name and records calls.
type fakeDecoder struct {
	images map[string]Bounds

	failRegion  bool
	failSampled bool
	failFull    bool

	// gate, when set, parks decodes until closed or cancelled.
	gate    chan struct{}
	entered chan struct{}

	mu      sync.Mutex
	probes  int
	regions []image.Rectangle
	samples []int
	dsts    [][]byte
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{images: map[string]Bounds{
		"a":      {Width: 800, Height: 600, Format: "jpeg"},
		"b":      {Width: 800, Height: 600, Format: "jpeg"},
		"c":      {Width: 800, Height: 600, Format: "jpeg"},
		"rot":    {Width: 600, Height: 800, Format: "jpeg"},
		"anim":   {Width: 800, Height: 600, Format: "gif"},
		"zero":   {Width: 0, Height: 600, Format: "png"},
		"small":  {Width: 40, Height: 30, Format: "png"},
		"square": {Width: 400, Height: 400, Format: "png"},
	}}
}

var errFake = errors.New("fake decode failure")

func (d *fakeDecoder) lookup(r io.Reader) (Bounds, error) {
	name, err := io.ReadAll(r)
	if err != nil {
		return Bounds{}, err
	}
	b, ok := d.images[string(name)]
	if !ok {
		return Bounds{}, errors.New("unknown image " + string(name))
	}
	return b, nil
}

func (d *fakeDecoder) wait(ctx context.Context) error {
	if d.gate == nil {
		return nil
	}
	if d.entered != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
	}
	select {
	case <-d.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *fakeDecoder) Bounds(_ context.Context, r io.Reader) (Bounds, error) {
	d.mu.Lock()
	d.probes++
	d.mu.Unlock()
	return d.lookup(r)
}

func (d *fakeDecoder) DecodeFull(ctx context.Context, r io.Reader, sample int) (*image.RGBA, error) {
	b, err := d.lookup(r)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.samples = append(d.samples, sample)
	d.mu.Unlock()
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	if d.failFull || (d.failSampled && sample > 1) {
		return nil, errFake
	}
	return image.NewRGBA(image.Rect(0, 0, ScaledSize(b.Width, sample), ScaledSize(b.Height, sample))), nil
}

func (d *fakeDecoder) DecodeRegion(ctx context.Context, r io.Reader, rect image.Rectangle, sample int, dst []byte) (*image.RGBA, error) {
	if _, err := d.lookup(r); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.regions = append(d.regions, rect)
	d.samples = append(d.samples, sample)
	d.dsts = append(d.dsts, dst)
	d.mu.Unlock()
	if err := d.wait(ctx); err != nil {
		return nil, err
	}
	if d.failRegion {
		return nil, errFake
	}

	w, h := ScaledSize(rect.Dx(), sample), ScaledSize(rect.Dy(), sample)
	n := w * h * BytesPerPixel
	if len(dst) < n {
		return image.NewRGBA(image.Rect(0, 0, w, h)), nil
	}
	return &image.RGBA{Pix: dst[:n], Stride: w * BytesPerPixel, Rect: image.Rect(0, 0, w, h)}, nil
}

// rotateNamed reports Orientation90 for the "rot" source.
var rotateNamed = OrientationReaderFunc(func(r io.Reader, _ int64) (Orientation, error) {
	name, err := io.ReadAll(r)
	if err != nil {
		return Orientation0, err
	}
	if string(name) == "rot" {
		return Orientation90, nil
	}
	return Orientation0, errors.New("no metadata")
})

// async runs every task on its own goroutine.
var async = SchedulerFunc(func(fn func()) error {
	go fn()
	return nil
})

// manual holds submitted tasks until run is called.
type manual struct {
	mu    sync.Mutex
	tasks []func()
}

func (m *manual) Submit(fn func()) error {
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	m.mu.Unlock()
	return nil
}

func (m *manual) run() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

// collect drains a task's events.
func collect(t *testing.T, task *DecodeTask) []Event {
	t.Helper()
	<-task.Done()
	var events []Event
	for e := range task.Events() {
		events = append(events, e)
	}
	require.NotEmpty(t, events)
	return events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func newTestLoader(t *testing.T, dec RegionDecoder, opts ...Option) *Loader {
	t.Helper()
	opts = append([]Option{WithScheduler(Inline)}, opts...)
	l, err := NewLoader(dec, opts...)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}
