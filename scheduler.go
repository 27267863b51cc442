package bitmap

// Scheduler runs decode tasks in the background.
type Scheduler interface {
	// Submit queues fn for execution. It returns ErrClosed once the
	// scheduler stops accepting work.
	Submit(fn func()) error
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func()) error

// Submit implements Scheduler.
func (f SchedulerFunc) Submit(fn func()) error {
	return f(fn)
}

// Inline runs every task synchronously on the submitting goroutine.
// Useful in tests and command-line tools.
var Inline Scheduler = SchedulerFunc(func(fn func()) error {
	fn()
	return nil
})
