// Package engine implements the single-threaded, readiness-based
// connection reactor (spec.md §4.H): one OS thread drives accept, read,
// write, and CGI-pipe readiness across every listening and client file
// descriptor without ever blocking.
package engine

import (
	"runtime"
	"syscall"
	"time"

	"github.com/yourusername/webserv/internal/cgi"
	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/errorpages"
	"github.com/yourusername/webserv/internal/httpmsg"
	"github.com/yourusername/webserv/internal/logging"
	"github.com/yourusername/webserv/internal/router"
	"github.com/yourusername/webserv/internal/static"
)

const serverHeaderValue = "webserv"

// listenerEntry pairs a raw listening socket with the endpoint config it
// serves, looked up by fd when the poller reports it read-ready.
type listenerEntry struct {
	l  *listener
	ep *config.ListenEndpoint
}

// Reactor is the whole connection engine: one epoll instance, every
// listening and client fd registered against it, and the single
// goroutine that drains it (spec.md §4.H step 1-4). Run locks itself to
// its OS thread for the reactor's lifetime — see spec.md's commitment to
// a literal single-threaded event loop rather than goroutine-per-
// connection fan-out.
type Reactor struct {
	cfg *config.Config
	log *logging.Logger

	poll *poller

	listenersByFD map[int]*listenerEntry
	conns         map[int]*Connection
	cgiWaitByFD   map[int]*Connection

	idleTimeout time.Duration
	cgiTimeout  time.Duration

	closing bool
}

// New builds a Reactor bound to every endpoint in cfg. It does not start
// serving until Run is called.
func New(cfg *config.Config, log *logging.Logger) (*Reactor, error) {
	poll, err := newPoller()
	if err != nil {
		return nil, err
	}

	r := &Reactor{
		cfg:           cfg,
		log:           log,
		poll:          poll,
		listenersByFD: make(map[int]*listenerEntry),
		conns:         make(map[int]*Connection),
		cgiWaitByFD:   make(map[int]*Connection),
		idleTimeout:   time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
		cgiTimeout:    time.Duration(cfg.CGITimeoutSeconds) * time.Second,
	}

	for _, ep := range cfg.Endpoints {
		l, err := newListener(ep.Address, ep.Port)
		if err != nil {
			r.Close()
			return nil, err
		}
		if err := poll.add(l.fd, eventRead); err != nil {
			r.Close()
			return nil, err
		}
		r.listenersByFD[l.fd] = &listenerEntry{l: l, ep: ep}
	}

	return r, nil
}

// Run drives the reactor until Close is called or an unrecoverable
// poller error occurs (spec.md §4.H). It locks the calling goroutine to
// its OS thread for the duration: the whole point of this design is that
// exactly one thread ever touches these fds.
func (r *Reactor) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var events []readyFD
	sweepEvery := r.idleTimeout / 4
	if sweepEvery <= 0 {
		sweepEvery = time.Second
	}
	nextSweep := time.Now().Add(sweepEvery)

	for !r.closing {
		timeoutMillis := int(time.Until(nextSweep) / time.Millisecond)
		if timeoutMillis < 0 {
			timeoutMillis = 0
		}

		var err error
		events, err = r.poll.wait(events, timeoutMillis)
		if err != nil {
			return err
		}

		for _, ev := range events {
			r.dispatch(ev)
		}

		now := time.Now()
		if now.After(nextSweep) {
			r.sweepIdle(now)
			r.sweepCGIDeadlines(now)
			nextSweep = now.Add(sweepEvery)
		}
	}
	return nil
}

// Close tears down every listener and connection. Safe to call once.
func (r *Reactor) Close() error {
	r.closing = true
	for fd, c := range r.conns {
		c.release()
		syscall.Close(fd)
	}
	for _, e := range r.listenersByFD {
		e.l.close()
	}
	if r.poll != nil {
		r.poll.close()
	}
	return nil
}

func (r *Reactor) dispatch(ev readyFD) {
	if entry, ok := r.listenersByFD[ev.fd]; ok {
		r.handleAccept(entry)
		return
	}
	if conn, ok := r.cgiWaitByFD[ev.fd]; ok {
		r.handleCGIReadable(conn)
		return
	}
	if conn, ok := r.conns[ev.fd]; ok {
		switch conn.phase {
		case phaseReading:
			r.handleReadable(conn)
		case phaseWriting, phaseDraining:
			r.handleWritable(conn)
		}
	}
}

func (r *Reactor) handleAccept(entry *listenerEntry) {
	fds, err := entry.l.acceptAll()
	if err != nil {
		r.log.Warnf("accept on %s: %v", entry.ep.String(), err)
	}
	for _, fd := range fds {
		conn := newConnection(fd, "", entry.ep, serverHeaderValue)
		r.conns[fd] = conn
		if err := r.poll.add(fd, eventRead); err != nil {
			conn.release()
			syscall.Close(fd)
			delete(r.conns, fd)
			continue
		}
	}
}

// handleReadable implements spec.md §4.H step 3: read-loop-until-
// EAGAIN/EOF with a completeness probe after each read.
func (r *Reactor) handleReadable(conn *Connection) {
	var buf [16 * 1024]byte
	for {
		n, err := syscall.Read(conn.fd, buf[:])
		if n > 0 {
			conn.readBuf = append(conn.readBuf, buf[:n]...)
		}
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				break
			}
			r.closeConnection(conn)
			return
		}
		if n == 0 {
			r.closeConnection(conn)
			return
		}
		if n < len(buf) {
			break
		}
	}

	conn.lastActive = time.Now()
	r.tryParseAndRoute(conn)
}

func (r *Reactor) tryParseAndRoute(conn *Connection) {
	consumed, err := httpmsg.Parse(conn.readBuf, httpmsg.DefaultLimits(), conn.req)
	if err == httpmsg.ErrNeedMore {
		return
	}
	if err != nil {
		status := 400
		if kind, ok := httpmsg.AsKind(err); ok {
			status = kind.Status()
		}
		// A request that failed to parse has no well-defined consumed
		// length; discard everything buffered so far rather than risk
		// replaying unparseable bytes into the next request.
		conn.pendingConsumed = len(conn.readBuf)
		r.writeErrorAndMaybeClose(conn, nil, status, status >= 500)
		return
	}

	conn.phase = phaseParsed
	conn.reqStart = time.Now()
	// pendingConsumed travels with the Connection (not as a call-stack
	// parameter) because the response may not finish writing until a
	// later epoll iteration (possibly after a CGI round-trip); only
	// handleWritable's write-complete branch may act on it.
	conn.pendingConsumed = consumed
	r.route(conn)
}

// route dispatches a successfully parsed request to a response path.
// Every branch below only *stages* the response (stageWrite flips the
// Connection to phaseWriting and arms EPOLLOUT) — it must never reset
// the Connection itself. The read buffer's consumed bytes (conn.pendingConsumed)
// are reclaimed, and the Connection returned to phaseReading, only once
// handleWritable has drained the staged bytes to the socket (spec.md §4.H step 5).
func (r *Reactor) route(conn *Connection) {
	decision, err := router.Route(conn.endpoint, conn.req)
	if err != nil {
		rerr, _ := err.(*router.Error)
		status := 500
		allow := ""
		if rerr != nil {
			status = rerr.Kind.Status()
			allow = rerr.Allow
		}
		r.writeErrorWithAllow(conn, nil, status, allow)
		return
	}

	if decision.IsRedirect() {
		r.writeRedirect(conn, decision.Location.Redirect)
		return
	}

	if decision.Location.HasCGI() {
		r.startCGIForRequest(conn, decision)
		return
	}

	body := conn.req.Body
	res, serr := static.Serve(decision.Location, conn.req.Method(), conn.req.Path(), body)
	if serr != nil {
		r.writeErrorAndMaybeClose(conn, decision.Server, static.StatusOf(serr), false)
		return
	}

	r.writeResult(conn, res.Status, res.ContentType, res.Body, res.Location)
}

func (r *Reactor) startCGIForRequest(conn *Connection, decision *router.Decision) {
	loc := decision.Location
	scriptName, pathInfo := cgi.ScriptPathInfo(conn.req.Path(), loc.Prefix, loc.CGIExtension)

	req := &cgi.Request{
		Method:        conn.req.Method(),
		Path:          conn.req.Path(),
		RawQuery:      conn.req.RawQuery(),
		Host:          conn.req.HostString(),
		ContentLength: conn.req.ContentLength,
		ContentType:   conn.req.Header.GetString("Content-Type"),
		Body:          conn.req.Body,
		Headers:       &conn.req.Header,
		ScriptPath:    scriptPath(loc, scriptName),
		ScriptName:    scriptName,
		PathInfo:      pathInfo,
		ServerName:    conn.req.HostString(),
		ServerPort:    conn.listenPort,
	}
	conn.pendingCGI = req

	env := cgi.BuildEnv(req, loc)
	wait, err := startCGI(req, loc.CGIInterpreterPath, env, r.cgiTimeout)
	if err != nil {
		r.writeErrorAndMaybeClose(conn, decision.Server, 500, false)
		return
	}

	conn.cgiProc = wait
	conn.cgiStdout = wait.stdoutFD()
	conn.cgiDeadline = wait.deadline
	conn.phase = phaseWaitingOnCGI
	// Suppress read-interest on the client fd while the CGI child runs;
	// stageWrite re-arms it (for EPOLLOUT) once the response is ready.
	r.poll.modify(conn.fd, 0)

	if err := r.poll.add(conn.cgiStdout, eventRead); err != nil {
		wait.kill()
		wait.reap()
		r.writeErrorAndMaybeClose(conn, decision.Server, 500, false)
		return
	}
	r.cgiWaitByFD[conn.cgiStdout] = conn
	// consumed bytes stay pending in readBuf (conn.pendingConsumed, set by
	// tryParseAndRoute) until the response is actually drained to the
	// socket; handleWritable's write-complete branch is the only place
	// that reclaims them, whether the response came from CGI or static.
}

func scriptPath(loc *config.LocationConfig, scriptName string) string {
	if loc.UsesAlias() {
		return loc.Alias + scriptName[len(loc.Prefix):]
	}
	return loc.Root + scriptName[len(loc.Prefix):]
}

func (r *Reactor) handleCGIReadable(conn *Connection) {
	out, eof, _ := conn.cgiProc.readMore(conn.cgiOutput)
	conn.cgiOutput = out

	timedOut := !eof && conn.cgiProc.expired(time.Now())
	if timedOut {
		_ = conn.cgiProc.cmd.Process.Signal(syscall.SIGKILL)
	}

	if !eof && !timedOut {
		return
	}

	delete(r.cgiWaitByFD, conn.cgiStdout)
	r.poll.remove(conn.cgiStdout)
	conn.cgiProc.reap()

	if timedOut {
		r.writeErrorAndMaybeClose(conn, nil, 504, false)
		return
	}

	parsed, perr := cgi.ParseOutput(conn.cgiOutput)
	if perr != nil {
		r.writeErrorAndMaybeClose(conn, nil, 502, false)
	} else {
		r.writeResult(conn, parsed.Status, parsed.ContentType, parsed.Body, "")
	}
	// Response is only staged here; handleWritable resets the Connection
	// once it has actually drained writeBuf to the socket.
}

func (r *Reactor) sweepCGIDeadlines(now time.Time) {
	for fd, conn := range r.cgiWaitByFD {
		if conn.cgiProc.expired(now) {
			conn.cgiProc.kill()
			if time.Since(conn.cgiProc.killedAt) > killGraceEngine {
				delete(r.cgiWaitByFD, fd)
				r.poll.remove(fd)
				conn.cgiProc.reap()
				r.writeErrorAndMaybeClose(conn, nil, 504, false)
			}
		}
	}
}

// writeResult stages a successful response in the Connection's write
// buffer and flips it into phaseWriting (spec.md §4.G/H).
func (r *Reactor) writeResult(conn *Connection, status int, contentType string, body []byte, location string) {
	w := conn.resp
	w.Reset(connDispositionFor(conn))
	w.Header().Set([]byte("Content-Type"), []byte(contentType))
	if location != "" {
		w.Header().Set([]byte("Location"), []byte(location))
	}
	w.WriteHeader(status)
	w.Write(body)
	r.stageWrite(conn, w.Bytes(time.Now()))
	r.logAccess(conn, status, len(body))
}

func (r *Reactor) writeRedirect(conn *Connection, redir *config.Redirect) {
	w := conn.resp
	w.Reset(connDispositionFor(conn))
	w.Header().Set([]byte("Location"), []byte(redir.Target))
	w.WriteHeader(redir.Status)
	r.stageWrite(conn, w.Bytes(time.Now()))
	r.logAccess(conn, redir.Status, 0)
}

// logAccess emits one structured access-log line per completed exchange
// (SPEC_FULL.md ambient logging section); Warn for 4xx/5xx, Info
// otherwise, matching the teacher's own severity-by-status convention.
func (r *Reactor) logAccess(conn *Connection, status, bodyLen int) {
	var dur time.Duration
	if !conn.reqStart.IsZero() {
		dur = time.Since(conn.reqStart)
	}
	if status >= 400 {
		r.log.Warnf("%s %s -> %d (%d bytes, %s)", conn.req.Method(), conn.req.Path(), status, bodyLen, dur)
		return
	}
	r.log.AccessLog(conn.req.Method(), conn.req.Path(), status, bodyLen, dur)
}

func (r *Reactor) writeErrorAndMaybeClose(conn *Connection, server *config.ServerConfig, status int, forceClose bool) {
	r.writeError(conn, server, status, "", forceClose)
}

// writeErrorWithAllow renders an error response carrying an Allow header,
// used for 405 Method Not Allowed (spec.md §4.D rule 4).
func (r *Reactor) writeErrorWithAllow(conn *Connection, server *config.ServerConfig, status int, allow string) {
	r.writeError(conn, server, status, allow, false)
}

func (r *Reactor) writeError(conn *Connection, server *config.ServerConfig, status int, allow string, forceClose bool) {
	contentType, body := errorpages.Render(server, status)
	w := conn.resp
	disp := connDispositionFor(conn)
	if forceClose {
		disp = httpmsg.Close
	}
	w.Reset(disp)
	w.Header().Set([]byte("Content-Type"), []byte(contentType))
	if allow != "" {
		w.Header().Set([]byte("Allow"), []byte(allow))
	}
	w.WriteHeader(status)
	w.Write(body)
	r.stageWrite(conn, w.Bytes(time.Now()))
	r.logAccess(conn, status, len(body))
}

func connDispositionFor(conn *Connection) httpmsg.ConnDisposition {
	if conn.req.Persistent() {
		return httpmsg.KeepAlive
	}
	return httpmsg.Close
}

func (r *Reactor) stageWrite(conn *Connection, data []byte) {
	conn.writeBuf = append(conn.writeBuf[:0], data...)
	conn.writeOffset = 0
	conn.phase = phaseWriting
	r.poll.modify(conn.fd, eventWrite)
}

// handleWritable implements spec.md §4.H step 3: write-loop-until-
// EAGAIN/complete, then either reset for keep-alive or close.
func (r *Reactor) handleWritable(conn *Connection) {
	for conn.writeOffset < len(conn.writeBuf) {
		n, err := syscall.Write(conn.fd, conn.writeBuf[conn.writeOffset:])
		if n > 0 {
			conn.writeOffset += n
		}
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return
			}
			r.closeConnection(conn)
			return
		}
	}

	if conn.resp.Disposition() == httpmsg.Close {
		r.closeConnection(conn)
		return
	}

	// The staged response is fully on the wire now: reclaim the consumed
	// read-buffer bytes and return to phaseReading (spec.md §4.H step 5,
	// §9 "reset in place"). Any pipelined bytes already in readBuf past
	// the just-parsed request seed the next parse.
	conn.resetForNextRequest(conn.pendingConsumed)
	r.poll.modify(conn.fd, eventRead)
}

func (r *Reactor) closeConnection(conn *Connection) {
	r.poll.remove(conn.fd)
	if conn.cgiStdout >= 0 {
		delete(r.cgiWaitByFD, conn.cgiStdout)
		r.poll.remove(conn.cgiStdout)
	}
	conn.release()
	syscall.Close(conn.fd)
	delete(r.conns, conn.fd)
}

// sweepIdle closes connections that have exceeded the idle timeout
// (spec.md §6.2 "Idle-connection timeout (default 60s)").
func (r *Reactor) sweepIdle(now time.Time) {
	for _, conn := range r.conns {
		if conn.phase == phaseReading && conn.idleFor(now) > r.idleTimeout {
			r.closeConnection(conn)
		}
	}
}
