// Package gdbstub is a target-side GDB Remote Serial Protocol stub for a
// 32-bit x86 program running under a DOS extender. When the debuggee faults
// or hits a software breakpoint, the extender hands control to the stub,
// which talks to a remote GDB over a byte transport (usually a serial line)
// and serves register/memory inspection, single-step and continue until the
// host resumes execution.
//
// Some documentation:
// https://sourceware.org/gdb/onlinedocs/gdb/Remote-Protocol.html
// https://sourceware.org/gdb/onlinedocs/gdb/Packets.html
// https://www.embecosm.com/appnotes/ean4/embecosm-howto-rsp-server-ean4-issue-2.html
package gdbstub

import (
	"errors"

	"go.uber.org/zap"
)

// bufMax is the size of the inbound and outbound packet buffers. It must
// hold at least numRegBytes*2 hex characters plus command overhead; 400 is
// a comfortable ceiling that fits in statically-owned stub memory.
const bufMax = 400

// Signals the stub hooks on init. The values are GDB's Unix-like numbering,
// which the extender-facing API also uses.
const (
	SigIll  = 4
	SigTrap = 5
	SigBus  = 7
	SigFpe  = 8
	SigSegv = 11
	SigUrg  = 16
)

var hookedSignals = [4]int{SigSegv, SigFpe, SigTrap, SigIll}

// Frame is the mutable exception-state record the extender passes to a
// registered handler. The stub reads the saved CPU state out of it on entry
// and writes the (possibly modified) state back before resuming.
type Frame struct {
	Regs    [numRegs]uint32
	ErrCode uint32 // CPU-reported error code; low 16 bits are meaningful
}

// ExceptionSource is the extender-provided exception delivery mechanism.
// Install hooks the given handler for one signal; the handler runs in
// exception context with the debuggee frozen. Restore puts back the default
// handler. RaiseBreakpoint issues a software breakpoint trap (int3) in the
// caller's context, synchronizing the debuggee with the host.
type ExceptionSource interface {
	Install(sig int, handler func(vector int, frame *Frame)) error
	Restore(sig int) error
	RaiseBreakpoint()
}

// Resumer atomically reloads the CPU from a frame and returns to the saved
// eip/cs/eflags. On 386 this is the IRETL trampoline and never returns; a
// hosting environment that performs the final reload itself may return
// normally instead, in which case HandleException returns to the extender.
type Resumer interface {
	Resume(frame *Frame)
}

// Pinner marks the stub's code and data as non-pageable so exception
// handling cannot itself page-fault.
type Pinner interface {
	Pin() error
	Unpin() error
}

// Stub holds all protocol and fault-recovery state. All of it is mutated
// only in stub context (exception handlers and the command loop); the
// debuggee never touches it.
type Stub struct {
	transport Transport
	mem       TargetMemory
	exc       ExceptionSource
	resume    Resumer
	pin       Pinner
	log       *zap.Logger

	regs [numRegs]uint32

	inBuf  [bufMax]byte
	outBuf [bufMax]byte

	// Sequence prefix of the last inbound packet, echoed on the reply.
	seq     [2]byte
	haveSeq bool

	// Fault-recovery state. memFaultRoutine is armed only around
	// stub-initiated memory accesses; while non-nil, a memory fault is
	// handed to it instead of entering the command loop.
	memFaultRoutine func()
	memErr          bool

	initialized bool
	remoteDebug bool

	// Last exception, preserved for post-mortem.
	vector  int
	errCode uint32
}

// Option configures a Stub.
type Option func(*Stub)

// WithTransport sets the byte transport the stub speaks RSP over.
func WithTransport(t Transport) Option { return func(s *Stub) { s.transport = t } }

// WithMemory sets the debuggee address-space accessor.
func WithMemory(m TargetMemory) Option { return func(s *Stub) { s.mem = m } }

// WithExceptionSource sets the extender exception-delivery mechanism.
func WithExceptionSource(e ExceptionSource) Option { return func(s *Stub) { s.exc = e } }

// WithResumer overrides the register-restore trampoline.
func WithResumer(r Resumer) Option { return func(s *Stub) { s.resume = r } }

// WithPinner sets the memory-pinning facility used by TargetInit.
func WithPinner(p Pinner) Option { return func(s *Stub) { s.pin = p } }

// WithLogger sets the logger. Wire-level logging only happens at debug
// level and only while the remote toggles it on (the 'd' packet).
func WithLogger(l *zap.Logger) Option { return func(s *Stub) { s.log = l } }

// activeStub is the process-wide pointer the exception handlers resolve
// their state through. Established by TargetInit, cleared by TargetClose.
var activeStub *Stub

// New builds a stub. The zero configuration uses direct in-process memory
// access, the IRETL trampoline and a nop logger; transport and exception
// source must be supplied before TargetInit.
func New(opts ...Option) *Stub {
	s := &Stub{
		mem:    directMemory{},
		resume: archResumer{},
		pin:    nopPinner{},
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TargetInit hooks the four exception handlers, pins stub memory and arms
// Breakpoint. It must run before the debuggee can trap into the stub.
func (s *Stub) TargetInit() error {
	if s.transport == nil {
		return errors.New("gdbstub: no transport configured")
	}
	if s.exc == nil {
		return errors.New("gdbstub: no exception source configured")
	}
	if err := s.pin.Pin(); err != nil {
		return err
	}
	for _, sig := range hookedSignals {
		if err := s.exc.Install(sig, s.HandleException); err != nil {
			// Roll back what we hooked so far.
			for _, done := range hookedSignals {
				if done == sig {
					break
				}
				s.exc.Restore(done)
			}
			s.pin.Unpin()
			return err
		}
	}
	activeStub = s
	s.initialized = true
	s.log.Info("gdb stub installed")
	return nil
}

// TargetClose restores all four default handlers and releases pinned
// memory. Safe to call more than once.
func (s *Stub) TargetClose() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if activeStub == s {
		activeStub = nil
	}
	var firstErr error
	for _, sig := range hookedSignals {
		if err := s.exc.Restore(sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.pin.Unpin(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.log.Info("gdb stub removed")
	return firstErr
}

// Breakpoint traps into the stub so the host can take control, typically
// right after TargetInit to synchronize on program start. Calls before
// initialization are silently ignored.
func (s *Stub) Breakpoint() {
	if !s.initialized {
		return
	}
	s.exc.RaiseBreakpoint()
}

// LastVector reports the CPU vector of the most recent exception.
func (s *Stub) LastVector() int { return s.vector }

// LastErrorCode reports the CPU error code of the most recent exception.
func (s *Stub) LastErrorCode() uint32 { return s.errCode }
