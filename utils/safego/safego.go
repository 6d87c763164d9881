package safego

import (
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datazip-inc/kinspect/utils/logger"
)

type RecoverHandler func(value interface{})

// GlobalRecoverHandler is called with the value of a panic recovered in a
// goroutine started by Run.
var GlobalRecoverHandler RecoverHandler = func(value interface{}) {
	logger.Errorf("recovered from panic in background goroutine: %v", value)
}

var startTime time.Time

// Run runs f in a new goroutine that does not take the process down when
// it panics.
func Run(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				GlobalRecoverHandler(r)
			}
		}()
		f()
	}()
}

// Recovery logs a panic with its stack trace. With exit it always ends the
// process with status 1, so it is deferred only where reaching it means
// failure.
func Recovery(exit bool) {
	err := recover()
	if err != nil {
		logger.Error(err)
		// capture stacks trace
		for _, str := range strings.Split(string(debug.Stack()), "\n") {
			logger.Error(strings.ReplaceAll(str, "\t", ""))
		}
	}
	if exit {
		logger.Infof("Time of execution %v", time.Since(startTime).String())
		os.Exit(1)
	}
}

func init() {
	startTime = time.Now()
}
