package engine

import (
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yourusername/webserv/internal/cgi"
)

// cgiWait tracks a CGI child whose stdout pipe is registered as an
// additional fd in the reactor's epoll instance, per spec.md §4.F's
// "preferred design": CGI represented as fds in the loop rather than a
// synchronous call that blocks every other connection.
type cgiWait struct {
	cmd      *exec.Cmd
	stdinW   *os.File
	stdoutR  *os.File
	deadline time.Time
	killedAt time.Time
	sentTerm bool
}

// startCGI forks the interpreter, wires its stdin/stdout through pipes,
// writes the request body, and returns the child wrapper with the
// stdout read fd already set non-blocking so the caller can register it
// with the reactor's poller.
func startCGI(req *cgi.Request, interp string, env []string, timeout time.Duration) (*cgiWait, error) {
	cmd := exec.Command(interp, req.ScriptPath)
	cmd.Env = env

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = nil

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, err
	}
	cmd.Stdin = stdinR

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stdinR.Close()
		stdinW.Close()
		return nil, err
	}
	// The child inherited its own copies of the write/read ends across
	// fork+exec; the parent only needs the other halves.
	stdoutW.Close()
	stdinR.Close()

	if err := syscall.SetNonblock(int(stdoutR.Fd()), true); err != nil {
		stdoutR.Close()
		stdinW.Close()
		return nil, err
	}

	w := &cgiWait{
		cmd:      cmd,
		stdinW:   stdinW,
		stdoutR:  stdoutR,
		deadline: time.Now().Add(timeout),
	}

	if len(req.Body) > 0 {
		go func(body []byte) {
			_, _ = w.stdinW.Write(body)
			w.stdinW.Close()
		}(req.Body)
	} else {
		w.stdinW.Close()
	}

	return w, nil
}

// stdoutFD is the fd to register read-interest for with the reactor.
func (w *cgiWait) stdoutFD() int { return int(w.stdoutR.Fd()) }

// readMore reads whatever is currently available from the child's
// stdout without blocking, appending to acc. EAGAIN means nothing more
// for now; any other read error (io.EOF once the child has closed its
// stdout) or a zero-length read is reported as eof, which for a CGI
// process is the output-complete signal (spec.md §4.F "Output parsing").
func (w *cgiWait) readMore(acc []byte) (out []byte, eof bool, err error) {
	var buf [8192]byte
	for {
		n, rerr := w.stdoutR.Read(buf[:])
		if n > 0 {
			acc = append(acc, buf[:n]...)
		}
		if rerr != nil {
			if rerr == syscall.EAGAIN {
				return acc, false, nil
			}
			return acc, true, nil
		}
		if n == 0 {
			return acc, true, nil
		}
	}
}

// expired reports whether the child's wall-clock budget has elapsed
// (spec.md §6.2: "CGI timeout (default 30s) terminates runaway
// children").
func (w *cgiWait) expired(now time.Time) bool {
	return now.After(w.deadline)
}

// kill escalates from SIGTERM to SIGKILL, matching the gateway's
// synchronous grace-period behavior in internal/cgi.Run so the contract
// is identical regardless of which path the engine takes.
func (w *cgiWait) kill() {
	if w.cmd.Process == nil {
		return
	}
	if !w.sentTerm {
		_ = w.cmd.Process.Signal(unix.SIGTERM)
		w.sentTerm = true
		w.killedAt = time.Now()
		return
	}
	if time.Since(w.killedAt) > killGraceEngine {
		_ = w.cmd.Process.Signal(unix.SIGKILL)
	}
}

// reap closes the stdout read end and then waits for the child; the wait
// blocks until the child has exited. Called once the reactor has observed
// EOF on stdout or has signalled the child.
func (w *cgiWait) reap() {
	_ = w.stdoutR.Close()
	_ = w.cmd.Wait()
}

const killGraceEngine = 1 * time.Second
