//go:build linux

package gdbstub

import "golang.org/x/sys/unix"

// MlockPinner keeps the stub resident on a paging host. A DOS extender
// offers per-range locking; the coarse equivalent here is mlockall, which
// guarantees exception handling cannot page-fault itself.
type MlockPinner struct{}

func (MlockPinner) Pin() error {
	return unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE)
}

func (MlockPinner) Unpin() error {
	return unix.Munlockall()
}
