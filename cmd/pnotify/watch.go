package main

import (
	"context"

	"github.com/watchkit/pnotify"
)

// This is the most basic example: it registers a Vnode watch on every path
// given and prints events as the dispatcher delivers them.
func watch(paths ...string) {
	if len(paths) < 1 {
		exit("must specify at least one path to watch")
	}

	if err := pnotify.Init(); err != nil {
		exit("initializing pnotify: %s", err)
	}
	defer pnotify.Shutdown()

	i := 0
	mask := pnotify.Create | pnotify.Delete | pnotify.Modify | pnotify.Attrib
	cb := func(path string, m pnotify.Mask, arg any) {
		i++
		printTime("%3d %s: %s", i, path, m)
	}

	for _, p := range paths {
		if _, err := pnotify.WatchVnode(p, mask, cb, nil); err != nil {
			exit("%q: %s", p, err)
		}
	}

	printTime("ready; press ^C to exit")
	if err := pnotify.Dispatch(context.Background()); err != nil {
		exit("dispatch: %s", err)
	}
}
