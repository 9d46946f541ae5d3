// Command pnotify provides example usage of the pnotify library.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var usage = `
pnotify is a Go library that unifies fd readiness, filesystem changes,
interval timers, and POSIX signals behind one watch/event abstraction.
This command serves as an example and debugging tool.

Commands:

    watch  [paths]   Watch the paths for filesystem changes and print events.
    timer  [seconds] Fire a repeating timer and print each tick.
    signal [num]     Watch a signal number and print when it's delivered.
`[1:]

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, filepath.Base(os.Args[0])+": "+format+"\n", a...)
	fmt.Print("\n" + usage)
	os.Exit(1)
}

func help() {
	fmt.Printf("%s [command] [arguments]\n\n", filepath.Base(os.Args[0]))
	fmt.Print(usage)
	os.Exit(0)
}

// Print line prefixed with the time (a bit shorter than log.Print; we don't
// really need the date and ms is useful here).
func printTime(s string, args ...interface{}) {
	fmt.Printf(time.Now().Format("15:04:05.0000")+" "+s+"\n", args...)
}

func main() {
	if len(os.Args) == 1 {
		help()
	}
	for _, f := range os.Args[1:] {
		switch f {
		case "help", "-h", "-help", "--help":
			help()
		}
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	default:
		exit("unknown command: %q", cmd)
	case "watch":
		watch(args...)
	case "timer":
		timer(args...)
	case "signal":
		signalCmd(args...)
	}
}
