package bitmap

import (
	"context"
	"fmt"
)

// EventKind identifies a decode notification.
type EventKind int

// Event kinds, in delivery order: Begin always first, then exactly one of
// Complete or Cancel.
const (
	EventBegin EventKind = iota
	EventComplete
	EventCancel
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventBegin:
		return "begin"
	case EventComplete:
		return "complete"
	case EventCancel:
		return "cancel"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one notification from a decode task.
type Event struct {
	Kind EventKind
	Key  RequestKey

	// Result is set on EventComplete. The receiver owns its reference and
	// must Release it when the raster is no longer displayed.
	Result *Handle

	// Err is set on EventCancel: ErrCancelled for a plain cancellation,
	// otherwise the failure that ended the task.
	Err error
}

// Terminal reports whether no further events follow.
func (e Event) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventCancel
}

// View receives decode notifications for the rasters it displays.
type View interface {
	OnDecodeBegin(key RequestKey)
	OnDecodeComplete(key RequestKey, result *Handle)
	OnDecodeCancel(key RequestKey)
}

// Deliver reads events until the terminal one and invokes v for each, on the
// calling goroutine. It returns the error carried by a cancel event, or
// ctx.Err if ctx ends first.
func Deliver(ctx context.Context, events <-chan Event, v View) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			switch e.Kind {
			case EventBegin:
				v.OnDecodeBegin(e.Key)
			case EventComplete:
				v.OnDecodeComplete(e.Key, e.Result)
				return nil
			case EventCancel:
				v.OnDecodeCancel(e.Key)
				return e.Err
			}
		}
	}
}

// Await waits for the terminal event and returns its result handle, or the
// cancel error.
func Await(ctx context.Context, events <-chan Event) (*Handle, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil, ErrCancelled
			}
			switch e.Kind {
			case EventComplete:
				return e.Result, nil
			case EventCancel:
				return nil, e.Err
			}
		}
	}
}
