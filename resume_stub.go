//go:build !386

package gdbstub

// archResumer only exists on 386; other hosts must supply a Resumer that
// knows how to hand the frame back to their exception machinery.
type archResumer struct{}

func (archResumer) Resume(frame *Frame) {
	panic("gdbstub: no resume trampoline for this architecture, use WithResumer")
}
