// scheme.go - the ":comp" scheme endpoint: a Unix-domain-socket transport
// framed with a fixed op byte, frame id, and payload length, the same
// shape runtime_ipc.go frames its own single-instance IPC packets with.
//
// Each connection is a long-lived helper goroutine exactly as the
// concurrency model prescribes: it never touches compositor state
// directly. It decodes one packet, hands it to the main loop over an
// unbuffered channel, blocks for the reply, and writes that back to the
// socket. The main loop drains at most one such request per tick,
// non-blocking, which is the scheme half of the loop's first suspension
// point.
package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type schemeOp byte

const (
	opOpen schemeOp = iota
	opFmap
	opFsync
	opClose
	opRead
	opWrite
)

type schemeStatus byte

const (
	statusOK schemeStatus = iota
	statusNotFound
	statusInvalidArgument
	statusWouldBlock
	statusNoSpace
	statusIoError
)

func statusFor(err error) schemeStatus {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, ErrNotFound):
		return statusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return statusInvalidArgument
	case errors.Is(err, ErrWouldBlock):
		return statusWouldBlock
	case errors.Is(err, ErrNoSpace):
		return statusNoSpace
	default:
		return statusIoError
	}
}

// schemeRequest is one decoded packet handed from a connection goroutine
// to the main loop. reply is unbuffered; the connection goroutine blocks
// on it until the main loop's tick gets around to servicing the request.
type schemeRequest struct {
	op      schemeOp
	id      uint64
	payload []byte
	reply   chan schemeReply
}

// schemeReply is what the main loop hands back. fd is only meaningful for
// a successful opFmap reply; -1 means "no descriptor to pass".
type schemeReply struct {
	status  schemeStatus
	payload []byte
	fd      int
}

func okReply(payload []byte) schemeReply {
	return schemeReply{status: statusOK, payload: payload, fd: -1}
}

func errReply(err error) schemeReply {
	return schemeReply{status: statusFor(err), fd: -1}
}

// Scheme is the ":comp" endpoint: a Unix-socket listener whose connections
// each decode packets and forward them to the compositor's tick loop.
type Scheme struct {
	listener *net.UnixListener
	inbox    chan schemeRequest
	log      *zap.SugaredLogger
	sockPath string
}

// OpenScheme binds the endpoint at sockPath, removing a stale socket file
// left behind by a prior crashed instance.
func OpenScheme(sockPath string, log *zap.SugaredLogger) (*Scheme, error) {
	addr, err := net.ResolveUnixAddr("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve scheme socket %s: %v", ErrIO, sockPath, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		if _, dialErr := net.DialTimeout("unix", sockPath, 0); dialErr != nil {
			if rmErr := unix.Unlink(sockPath); rmErr == nil {
				ln, err = net.ListenUnix("unix", addr)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: listen on %s: %v", ErrIO, sockPath, err)
		}
	}
	return &Scheme{listener: ln, inbox: make(chan schemeRequest), log: log, sockPath: sockPath}, nil
}

// Inbox is drained by the compositor's tick loop, at most once per tick.
func (s *Scheme) Inbox() <-chan schemeRequest { return s.inbox }

// Serve accepts connections until the listener is closed.
func (s *Scheme) Serve() {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting and removes the socket file.
func (s *Scheme) Close() error {
	err := s.listener.Close()
	unix.Unlink(s.sockPath)
	return err
}

const packetHeaderSize = 1 + 8 + 4 // op byte, frame id, payload length

func (s *Scheme) handleConn(conn *net.UnixConn) {
	defer conn.Close()
	for {
		header := make([]byte, packetHeaderSize)
		if _, err := readFull(conn, header); err != nil {
			return
		}
		req := schemeRequest{
			op:      schemeOp(header[0]),
			id:      binary.BigEndian.Uint64(header[1:9]),
			payload: nil,
			reply:   make(chan schemeReply),
		}
		if payloadLen := binary.BigEndian.Uint32(header[9:13]); payloadLen > 0 {
			req.payload = make([]byte, payloadLen)
			if _, err := readFull(conn, req.payload); err != nil {
				return
			}
		}

		s.inbox <- req
		reply := <-req.reply

		if !s.deliver(conn, reply) {
			return
		}
	}
}

func readFull(conn *net.UnixConn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *Scheme) deliver(conn *net.UnixConn, reply schemeReply) bool {
	if reply.status == statusOK && reply.fd >= 0 {
		return s.writeFmapReply(conn, reply.payload, reply.fd)
	}
	header := make([]byte, 1+4)
	header[0] = byte(reply.status)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(reply.payload)))
	_, err := conn.Write(append(header, reply.payload...))
	return err == nil
}

// writeFmapReply hands the client a duplicated copy of the frame's memfd
// over SCM_RIGHTS, so the client's own mmap is independent of the
// compositor's lifetime for that descriptor. The original fd (owned by the
// Frame) is never closed here.
func (s *Scheme) writeFmapReply(conn *net.UnixConn, payload []byte, fd int) bool {
	dup, err := unix.Dup(fd)
	if err != nil {
		return s.deliver(conn, errReply(fmt.Errorf("%w: dup fmap fd: %v", ErrIO, err)))
	}
	defer unix.Close(dup)

	header := make([]byte, 1+4)
	header[0] = byte(statusOK)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))

	oob := unix.UnixRights(dup)
	_, _, err = conn.WriteMsgUnix(append(header, payload...), oob, nil)
	return err == nil
}
