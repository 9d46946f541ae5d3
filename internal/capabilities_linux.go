//go:build linux && !appengine
// +build linux,!appengine

package internal

import (
	"github.com/syndtr/gocapability/capability"
)

// CapabilitySet mirrors the POSIX capability set a check is performed
// against.
type CapabilitySet int

const (
	CapEffective   CapabilitySet = 0
	CapPermitted   CapabilitySet = 1
	CapInheritable CapabilitySet = 2
)

// Capabilities wraps the current process's capability set, probed once.
// Its one caller, the Linux Vnode backend, uses it to decide whether a
// permission-denied inotify_add_watch is worth surfacing with a more
// specific error.
type Capabilities struct {
	caps capability.Capabilities
}

// CapInit probes the current process's capability set.
func CapInit() (*Capabilities, error) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return nil, err
	}
	if err := caps.Load(); err != nil {
		return nil, err
	}
	return &Capabilities{caps: caps}, nil
}

// IsSet reports whether capability cap (a CAP_* number, e.g. from
// golang.org/x/sys/unix) is set in the given capability set.
func (c *Capabilities) IsSet(cap int, set CapabilitySet) (bool, error) {
	var ct capability.CapType
	switch set {
	case CapEffective:
		ct = capability.EFFECTIVE
	case CapPermitted:
		ct = capability.PERMITTED
	case CapInheritable:
		ct = capability.INHERITABLE
	default:
		ct = capability.EFFECTIVE
	}
	return c.caps.Get(ct, capability.Cap(cap)), nil
}
