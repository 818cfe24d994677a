package xgo

import (
	"fmt"
	"runtime/debug"

	"github.com/go-kratos/kratos/v2/log"
)

// RecoverFromError must be deferred directly. It logs the panic with its stack
// and hands the recovered value to cb when cb is not nil.
func RecoverFromError(cb func(e any)) {
	if e := recover(); e != nil {
		log.Errorf("Recover => %v\n%s\n", e, debug.Stack())
		if cb != nil {
			cb(e)
		}
	}
}

// SafeRun executes fn and converts a panic into an error.
func SafeRun(fn func() error) (err error) {
	defer RecoverFromError(func(e any) {
		err = fmt.Errorf("panic: %v", e)
	})
	return fn()
}
