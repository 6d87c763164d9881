package kinspect

import (
	"os"

	"github.com/datazip-inc/kinspect/protocol"
	"github.com/datazip-inc/kinspect/utils/logger"
	"github.com/datazip-inc/kinspect/utils/safego"
)

// Execute runs the command line and exits the process.
func Execute() {
	defer safego.Recovery(true)

	err := protocol.CreateRootCommand().Execute()
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(0)
}
