package cgi

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"

	"github.com/ybouane/webservd/internal/httpmsg"
	"golang.org/x/sys/unix"
)

// Record tracks one in-flight CGI invocation: the spawned process, its
// three pipe endpoints, and the accumulators/flags the coordinator polls
// toward finalization.
type Record struct {
	Cmd *exec.Cmd
	Pid int

	// InvocationID correlates the spawn, pump, and finalize log lines for
	// one CGI invocation, since Pid can be reused once the child exits
	// and is reaped.
	InvocationID uuid.UUID

	ClientFD int // the connection this CGI invocation belongs to

	stdinFile  *os.File
	stdoutFile *os.File
	stderrFile *os.File

	StdinFd  int
	StdoutFd int
	StderrFd int

	StdinBuf    []byte
	StdinOffset int

	StdoutBuf []byte
	StderrBuf []byte

	Exited      bool
	StdinClosed bool
	StdoutClosed bool
	StderrClosed bool

	ExitStatus int

	// Method and Version are captured at spawn time because the owning
	// connection's request is gone by the time the response is
	// finalized.
	Method  string
	Version string
}

// Finalizable reports whether the process has exited and all three pipes
// have been observed closed.
func (r *Record) Finalizable() bool {
	return r.Exited && r.StdinClosed && r.StdoutClosed && r.StderrClosed
}

// Spawn forks and execs interpreter scriptPath via three pipes. The
// three parent-side pipe fds are set non-blocking and returned
// unregistered; the caller is responsible for registering them with the
// poll registry.
func Spawn(interpreter, scriptPath string, req *httpmsg.Request, clientFD int) (*Record, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cgi stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("cgi stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("cgi stderr pipe: %w", err)
	}

	cmd := exec.Command(interpreter, scriptPath)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.Env = BuildEnv(req, scriptPath)

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("cgi execve %s: %w", interpreter, err)
	}

	// Parent closes the child's ends; it keeps stdinW (to write the
	// request body) and stdoutR/stderrR (to read the response).
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	stdinFd := int(stdinW.Fd())
	stdoutFd := int(stdoutR.Fd())
	stderrFd := int(stderrR.Fd())

	for _, fd := range []int{stdinFd, stdoutFd, stderrFd} {
		if err := unix.SetNonblock(fd, true); err != nil {
			cmd.Process.Kill()
			stdinW.Close()
			stdoutR.Close()
			stderrR.Close()
			return nil, fmt.Errorf("cgi set nonblocking: %w", err)
		}
	}

	r := &Record{
		Cmd:          cmd,
		Pid:          cmd.Process.Pid,
		InvocationID: uuid.New(),
		ClientFD:     clientFD,
		stdinFile:   stdinW,
		stdoutFile:  stdoutR,
		stderrFile:  stderrR,
		StdinFd:     stdinFd,
		StdoutFd:    stdoutFd,
		StderrFd:    stderrFd,
		StdinBuf:    req.Body,
		Method:      req.Method,
		Version:     req.Version,
		StdinClosed: len(req.Body) == 0,
	}
	if r.StdinClosed {
		unix.Close(stdinFd)
		r.stdinFile.Close()
	}
	return r, nil
}

// PumpStdin writes as much of StdinBuf as possible without blocking; the
// caller should call this on write readiness of StdinFd.
func (r *Record) PumpStdin() error {
	for r.StdinOffset < len(r.StdinBuf) {
		n, err := unix.Write(r.StdinFd, r.StdinBuf[r.StdinOffset:])
		if n > 0 {
			r.StdinOffset += n
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			return fmt.Errorf("cgi stdin write: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
	r.closeStdin()
	return nil
}

func (r *Record) closeStdin() {
	if r.StdinClosed {
		return
	}
	r.stdinFile.Close()
	r.StdinClosed = true
}

// PumpStdout reads available bytes into StdoutBuf until EAGAIN or EOF.
func (r *Record) PumpStdout() error { return r.pumpRead(r.StdoutFd, &r.StdoutBuf, &r.StdoutClosed, &r.stdoutFile) }

// PumpStderr reads available bytes into StderrBuf until EAGAIN or EOF.
func (r *Record) PumpStderr() error { return r.pumpRead(r.StderrFd, &r.StderrBuf, &r.StderrClosed, &r.stderrFile) }

func (r *Record) pumpRead(fd int, buf *[]byte, closed *bool, file **os.File) error {
	if *closed {
		return nil
	}
	tmp := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, tmp)
		if n > 0 {
			*buf = append(*buf, tmp[:n]...)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			(*file).Close()
			*closed = true
			return fmt.Errorf("cgi read: %w", err)
		}
		if n == 0 {
			(*file).Close()
			*closed = true
			return nil
		}
	}
}

// MarkExited records the wait status for a reaped pid.
func (r *Record) MarkExited(status int) {
	r.Exited = true
	r.ExitStatus = status
}

// Cleanup force-closes any pipe fds still open. Called once finalization
// has produced a response, or when the owning connection disappears
// first.
func (r *Record) Cleanup() {
	if !r.StdinClosed {
		r.stdinFile.Close()
		r.StdinClosed = true
	}
	if !r.StdoutClosed {
		r.stdoutFile.Close()
		r.StdoutClosed = true
	}
	if !r.StderrClosed {
		r.stderrFile.Close()
		r.StderrClosed = true
	}
}

// Kill sends SIGKILL to the child, used when an invocation has to be
// aborted (its deadline passed, or the owning connection went away).
func (r *Record) Kill() error {
	if r.Cmd.Process == nil {
		return nil
	}
	return r.Cmd.Process.Signal(unix.SIGKILL)
}
