package service

import (
	"os"
	"os/exec"
)

// Handle is a running consumer process.
type Handle interface {
	// Signal delivers sig to the process.
	Signal(sig os.Signal) error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Err returns the exit error after Done is closed.
	Err() error
}

// Runner launches consumer processes. It exists so tests can substitute a
// fake process for the real JVM.
type Runner interface {
	Start(name string, args ...string) (Handle, error)
}

// ExecRunner runs real processes via os/exec.
type ExecRunner struct{}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (h *execHandle) Signal(sig os.Signal) error {
	return h.cmd.Process.Signal(sig)
}

func (h *execHandle) Done() <-chan struct{} { return h.done }

func (h *execHandle) Err() error {
	<-h.done
	return h.err
}

func (r *ExecRunner) Start(name string, args ...string) (Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}
