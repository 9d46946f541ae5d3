package main

import (
	"context"
	"strconv"

	"github.com/watchkit/pnotify"
)

func timer(args ...string) {
	seconds := 1.0
	if len(args) > 0 {
		s, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			exit("invalid interval %q: %s", args[0], err)
		}
		seconds = s
	}

	if err := pnotify.Init(); err != nil {
		exit("initializing pnotify: %s", err)
	}
	defer pnotify.Shutdown()

	i := 0
	cb := func(m pnotify.Mask, arg any) {
		i++
		printTime("tick %d", i)
	}
	if _, err := pnotify.WatchTimer(seconds, 0, cb, nil); err != nil {
		exit("registering timer: %s", err)
	}

	printTime("ready; firing every %.2fs; press ^C to exit", seconds)
	if err := pnotify.Dispatch(context.Background()); err != nil {
		exit("dispatch: %s", err)
	}
}
