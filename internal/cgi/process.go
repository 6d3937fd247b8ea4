package cgi

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimeout is returned by Run when the child exceeded its wall-clock
// budget and had to be killed (spec.md §4.F failure mode: 504).
var ErrTimeout = errors.New("cgi: child process timed out")

// killGrace is how long the gateway waits after SIGTERM before escalating
// to SIGKILL (spec.md §4.H "CGI timeout ... terminates runaway children").
const killGrace = 1 * time.Second

// Run starts interp with args, writes body to its stdin, and collects
// everything written to stdout within timeout. It never blocks past
// timeout+killGrace: on timeout the child is sent SIGTERM, then SIGKILL
// after killGrace if it hasn't exited, and ErrTimeout is returned. The
// child is always reaped before Run returns (spec.md §6.2 "no zombies").
func Run(interp, script string, env []string, body []byte, timeout time.Duration) ([]byte, error) {
	cmd := exec.Command(interp, script)
	cmd.Env = env

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	writeErr := make(chan error, 1)
	go func() {
		_, err := stdin.Write(body)
		stdin.Close()
		writeErr <- err
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		<-writeErr
		return stdout.Bytes(), nil
	case <-timer.C:
		killAndReap(cmd, done)
		return nil, ErrTimeout
	}
}

// killAndReap sends SIGTERM, waits killGrace for a clean exit, then
// escalates to SIGKILL (spec.md §6.2: "every forked CGI child is reaped
// within timeout + grace").
func killAndReap(cmd *exec.Cmd, done chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(unix.SIGTERM)

	grace := time.NewTimer(killGrace)
	defer grace.Stop()

	select {
	case <-done:
		return
	case <-grace.C:
		_ = cmd.Process.Signal(unix.SIGKILL)
		<-done
	}
}
