package main

import (
	"context"
	"strconv"

	"github.com/watchkit/pnotify"
)

// signalCmd is named to avoid colliding with the pnotify.Signal Kind value.
func signalCmd(args ...string) {
	if len(args) < 1 {
		exit("must specify a signal number")
	}
	signum, err := strconv.Atoi(args[0])
	if err != nil {
		exit("invalid signal number %q: %s", args[0], err)
	}

	if err := pnotify.Init(); err != nil {
		exit("initializing pnotify: %s", err)
	}
	defer pnotify.Shutdown()

	cb := func(signum int, arg any) {
		printTime("received signal %d", signum)
	}
	if _, err := pnotify.WatchSignal(signum, cb, nil); err != nil {
		exit("registering signal watch: %s", err)
	}

	printTime("ready; watching signal %d; press ^C to exit", signum)
	if err := pnotify.Dispatch(context.Background()); err != nil {
		exit("dispatch: %s", err)
	}
}
