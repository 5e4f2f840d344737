package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit codes returned by accellog commands.
const (
	ExitFailure   = 1
	ExitDevice    = 2
	ExitInterrupt = 130
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}
