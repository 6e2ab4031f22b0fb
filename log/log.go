package log

import (
	"io"
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name: "exzos",
	})
	L.SetLevel(hclog.Info)

	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// Setup replaces L with a logger writing to w at the named level. An empty
// level keeps Info, unless TRACE is set.
func Setup(level string, w io.Writer) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}

	L = hclog.New(&hclog.LoggerOptions{
		Name:   "exzos",
		Level:  lvl,
		Output: w,
	})

	EnableDebug()

	return L
}
