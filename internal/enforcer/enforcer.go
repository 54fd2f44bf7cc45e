// Package enforcer turns Accounting decisions and disallowed-pattern
// matches into actual process termination: resolve descendants, signal
// gracefully, wait, then signal forcefully.
package enforcer

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/aaronsb/playtimed/internal/safety"
	"github.com/aaronsb/playtimed/internal/store"
)

// DescendantResolver abstracts process-tree lookup so tests can avoid
// touching the real process table.
type DescendantResolver interface {
	Descendants(pid int) ([]int, error)
	ProcessInfo(pid int) (name, cmdline string, ppid int, err error)
}

// Enforcer terminates a process and its descendant tree, recording an
// audit Event either way.
type Enforcer struct {
	st           *store.Store
	resolver     DescendantResolver
	excluder     *safety.Excluder
	gracefulWait time.Duration
	passthrough  bool
	log          func(format string, args ...any)
}

func New(st *store.Store, resolver DescendantResolver, excluder *safety.Excluder, gracefulWait time.Duration, logf func(string, ...any)) *Enforcer {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Enforcer{st: st, resolver: resolver, excluder: excluder, gracefulWait: gracefulWait, log: logf}
}

// SetPassthrough switches terminate() between real enforcement and a
// logged no-op, tracking the daemon's current mode.
func (e *Enforcer) SetPassthrough(on bool) { e.passthrough = on }

// Terminate kills pid and its descendant tree (§4.8). In passthrough
// mode it is a no-op that still logs the intended kill, per the daemon
// mode contract, and still records the audit event so the CLI's audit
// log shows what WOULD have happened.
func (e *Enforcer) Terminate(ctx context.Context, user string, pid int, processName, reasonTag string) error {
	descendants, err := e.resolver.Descendants(pid)
	if err != nil {
		return fmt.Errorf("resolve descendants of pid %d: %w", pid, err)
	}

	if e.passthrough {
		e.log("passthrough mode: would terminate pid %d (%s) reason=%s, %d descendants", pid, processName, reasonTag, len(descendants))
		return e.recordEvent(ctx, user, pid, processName, reasonTag)
	}

	e.signalAll(pid, descendants, syscall.SIGTERM)

	if waitForExit(pid, e.gracefulWait) {
		return e.recordEvent(ctx, user, pid, processName, reasonTag)
	}

	e.signalAll(pid, descendants, syscall.SIGKILL)
	return e.recordEvent(ctx, user, pid, processName, reasonTag)
}

func (e *Enforcer) signalAll(root int, descendants []int, sig syscall.Signal) {
	e.signalOne(root, sig)
	for _, d := range descendants {
		// Descendants covered by the safety exclusion are never
		// signalled even during enforcement of their parent.
		name, cmdline, ppid, err := e.resolver.ProcessInfo(d)
		if err == nil && e.excluder.IsExcluded(name, cmdline, d, ppid) {
			e.log("descendant pid %d (%s) excluded from enforcement of pid %d", d, name, root)
			continue
		}
		e.signalOne(d, sig)
	}
}

func (e *Enforcer) signalOne(pid int, sig syscall.Signal) {
	if err := syscall.Kill(pid, sig); err != nil {
		if err == syscall.ESRCH {
			e.log("pid %d vanished before signal %v; treated as success", pid, sig)
			return
		}
		e.log("signal %v to pid %d failed: %v", sig, pid, err)
	}
}

// waitForExit polls for a process's disappearance up to timeout, used
// instead of a blocking wait() since the daemon is not the pid's parent.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(pid, 0); err != nil {
			return true // ESRCH: process gone
		}
		time.Sleep(200 * time.Millisecond)
	}
	return syscall.Kill(pid, 0) != nil
}

func (e *Enforcer) recordEvent(ctx context.Context, user string, pid int, processName, reasonTag string) error {
	_, err := e.st.RecordEvent(ctx, store.Event{
		Timestamp: time.Now(),
		User:      user,
		EventType: "terminated",
		App:       processName,
		PID:       pid,
		Details:   reasonTag,
	})
	if err != nil {
		return fmt.Errorf("record terminated event for pid %d: %w", pid, err)
	}
	return nil
}
