package stubserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/matrixctl/internal/matrix"
	"github.com/danmuck/matrixctl/internal/protocol"
	"github.com/danmuck/matrixctl/internal/protocol/frame"
)

// Script drives one scripted compute-service session.
type Script struct {
	// Acks overrides the reply for a command; unset commands are echoed.
	Acks map[protocol.Token]protocol.Token
	// Pending is how many POL commands get NotYet before DON.
	Pending int
	NotYet  protocol.Token
	// Result is written after DON; nil echoes the request matrix.
	Result *matrix.Matrix
	// ResetOn drops the connection with a RST when this command arrives.
	ResetOn protocol.Token
	// Silent stops answering once the first POL arrives.
	Silent bool
	// ResultDelay holds the result cells back after the header is sent.
	ResultDelay time.Duration
}

// Received is what the stub observed during the session.
type Received struct {
	Commands []protocol.Token
	Workers  uint32
	Matrix   matrix.Matrix
	Polls    int
}

type Server struct {
	ln     net.Listener
	script Script

	mu   sync.Mutex
	recv Received
	done chan error
}

// Start listens on loopback and serves exactly one connection.
func Start(t testing.TB, script Script) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("stubserver listen: %v", err)
	}
	if script.NotYet == "" {
		script.NotYet = protocol.TokenNotYet
	}
	s := &Server{
		ln:     ln,
		script: script,
		done:   make(chan error, 1),
	}
	go func() {
		s.done <- s.serve()
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Wait blocks until the session ends and returns what was observed.
func (s *Server) Wait() (Received, error) {
	err := <-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recv, err
}

func (s *Server) serve() error {
	defer s.ln.Close()

	conn, err := s.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	}
	defer conn.Close()

	for {
		cmd, err := protocol.ReadToken(conn)
		if err != nil {
			if errors.Is(err, protocol.ErrShortAck) {
				return nil
			}
			return err
		}
		s.record(cmd)

		if cmd == s.script.ResetOn {
			if tcp, ok := conn.(*net.TCPConn); ok {
				_ = tcp.SetLinger(0)
			}
			return nil
		}

		switch cmd {
		case protocol.TokenSyn, protocol.TokenStart:
			if err := protocol.WriteToken(conn, s.ack(cmd)); err != nil {
				return err
			}
		case protocol.TokenData:
			req, err := frame.ReadDataRequest(conn, frame.DefaultLimits())
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.recv.Workers = req.Workers
			s.recv.Matrix = req.Matrix
			s.mu.Unlock()
			if err := protocol.WriteToken(conn, s.ack(cmd)); err != nil {
				return err
			}
		case protocol.TokenPoll:
			if s.script.Silent {
				s.drain(conn)
				return nil
			}
			polls := s.countPoll()
			if polls <= s.script.Pending {
				if err := protocol.WriteToken(conn, s.script.NotYet); err != nil {
					return err
				}
				continue
			}
			if err := protocol.WriteToken(conn, protocol.TokenDone); err != nil {
				return err
			}
			if err := s.writeResult(conn); err != nil {
				return err
			}
			s.drain(conn)
			return nil
		default:
			if err := protocol.WriteToken(conn, protocol.TokenIncorrectMethod); err != nil {
				return err
			}
			return fmt.Errorf("stubserver: unexpected command %q", string(cmd))
		}
	}
}

func (s *Server) ack(cmd protocol.Token) protocol.Token {
	if tok, ok := s.script.Acks[cmd]; ok {
		return tok
	}
	return cmd
}

func (s *Server) result() matrix.Matrix {
	if s.script.Result != nil {
		return *s.script.Result
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recv.Matrix
}

func (s *Server) writeResult(conn net.Conn) error {
	if s.script.ResultDelay <= 0 {
		return frame.WriteResult(conn, s.result())
	}
	buf := s.result().Serialize()
	if _, err := conn.Write(buf[:matrix.DimLen]); err != nil {
		return err
	}
	time.Sleep(s.script.ResultDelay)
	_, err := conn.Write(buf[matrix.DimLen:])
	return err
}

func (s *Server) record(cmd protocol.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recv.Commands = append(s.recv.Commands, cmd)
}

func (s *Server) countPoll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recv.Polls++
	return s.recv.Polls
}

// drain holds the connection open until the client hangs up.
func (s *Server) drain(conn net.Conn) {
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}
