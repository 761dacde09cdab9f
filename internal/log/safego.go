package log

import (
	"fmt"
	"runtime/debug"
)

// SafeGo runs fn in a new goroutine with panic recovery.
// A recovered panic is logged with its stack trace instead of crashing
// the process; name identifies the goroutine in the log entry.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				Error(CatEngine, "goroutine panic recovered",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
