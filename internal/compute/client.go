package compute

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/danmuck/matrixctl/internal/matrix"
	"github.com/danmuck/matrixctl/internal/observability"
	"github.com/danmuck/matrixctl/internal/protocol"
	"github.com/danmuck/matrixctl/internal/protocol/frame"
	"github.com/danmuck/matrixctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

var ErrAddressRequired = errors.New("compute: address required")

// Dialer opens the session transport. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type ClientConfig struct {
	Address string
	Session session.Config
	// Dialer defaults to a net.Dialer bounded by Session.ConnectTimeout.
	Dialer Dialer
	// OnState is called after every state transition.
	OnState func(State)
	// Rand drives poll jitter. Nil seeds a generator from the clock. A Rand
	// is not safe for concurrent use, so sessions sharing a Client must not
	// run in parallel when one is supplied.
	Rand *rand.Rand
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Address: "127.0.0.1:7878",
		Session: session.DefaultConfig(),
	}
}

// Job is one matrix submission.
type Job struct {
	Workers uint32
	Matrix  matrix.Matrix
}

type Result struct {
	Matrix matrix.Matrix
	// Polls counts POL commands sent after the loop-entry poll.
	Polls   int
	State   State
	Elapsed time.Duration
	// FailedIn is the state the session was in when it failed.
	FailedIn State
}

type Client struct {
	cfg ClientConfig
	rng *rand.Rand
}

func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{Timeout: cfg.Session.ConnectTimeout}
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Client{
		cfg: cfg,
		rng: rng,
	}, nil
}

// Run drives one full session: dial, SYN, DAT, STA, poll until DON, read the
// result. The connection is closed before Run returns on every path.
func (c *Client) Run(ctx context.Context, job Job) (Result, error) {
	s := &run{
		cfg:   c.cfg,
		rng:   c.rng,
		job:   job,
		start: time.Now(),
	}
	res, err := s.execute(ctx)
	res.Elapsed = time.Since(s.start)
	observability.RecordSession(outcome(err), res.Elapsed)
	if err != nil {
		log.Warn().Err(err).Str("addr", c.cfg.Address).Str("state", res.FailedIn.String()).Msg("compute session failed")
		return res, err
	}
	log.Debug().Str("addr", c.cfg.Address).Int("polls", res.Polls).Dur("elapsed", res.Elapsed).Msg("compute session done")
	return res, nil
}

type run struct {
	cfg   ClientConfig
	rng   *rand.Rand
	job   Job
	start time.Time

	conn         net.Conn
	state        State
	polls        int
	pollDeadline time.Time
}

func (s *run) execute(ctx context.Context) (Result, error) {
	s.state = StateConnecting
	conn, err := s.cfg.Dialer.DialContext(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return s.fail(fmt.Errorf("%w: dial %s: %w", protocol.ErrTransport, s.cfg.Address, err))
	}
	s.conn = conn
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := s.exchange(ctx, protocol.TokenSyn, nil); err != nil {
		return s.fail(err)
	}
	s.transition(StateSynSent)

	payload := frame.EncodeDataRequest(frame.DataRequest{Workers: s.job.Workers, Matrix: s.job.Matrix})
	if _, err := s.exchange(ctx, protocol.TokenData, payload); err != nil {
		return s.fail(err)
	}
	s.transition(StateDataSent)

	if _, err := s.exchange(ctx, protocol.TokenStart, nil); err != nil {
		return s.fail(err)
	}
	s.transition(StateStaSent)

	if s.cfg.Session.PollTimeout > 0 {
		s.pollDeadline = time.Now().Add(s.cfg.Session.PollTimeout)
	}
	ack, err := s.exchange(ctx, protocol.TokenPoll, nil)
	if err != nil {
		return s.fail(err)
	}
	s.transition(StatePolling)

	for ack != protocol.TokenDone {
		if err := s.checkPollBudget(); err != nil {
			return s.fail(err)
		}
		if err := s.waitPoll(ctx); err != nil {
			return s.fail(err)
		}
		s.polls++
		ack, err = s.exchange(ctx, protocol.TokenPoll, nil)
		if err != nil {
			return s.fail(err)
		}
	}
	// DON arrived; the result read is bounded by ReadTimeout and ctx only.
	s.pollDeadline = time.Time{}

	out, err := s.readResult(ctx)
	if err != nil {
		return s.fail(err)
	}
	s.transition(StateDone)
	return Result{Matrix: out, Polls: s.polls, State: StateDone}, nil
}

// exchange writes one command (or a pre-framed payload starting with it) and
// reads the 3-byte acknowledgement.
func (s *run) exchange(ctx context.Context, cmd protocol.Token, payload []byte) (protocol.Token, error) {
	if err := s.setWriteDeadline(ctx); err != nil {
		return "", s.ioError(ctx, "send "+string(cmd), err)
	}
	var err error
	if payload != nil {
		_, err = s.conn.Write(payload)
	} else {
		err = protocol.WriteToken(s.conn, cmd)
	}
	if err != nil {
		return "", s.ioError(ctx, "send "+string(cmd), err)
	}
	log.Debug().Str("state", s.state.String()).Msgf("Sent: %s", cmd)

	if err := s.setReadDeadline(ctx); err != nil {
		return "", s.ioError(ctx, "ack "+string(cmd), err)
	}
	ack, err := protocol.ReadToken(s.conn)
	if err != nil {
		return "", s.ioError(ctx, "ack "+string(cmd), err)
	}
	log.Debug().Str("state", s.state.String()).Msgf("Received: %s", ack)
	if cmd == protocol.TokenPoll {
		observability.RecordPoll(pollReply(ack))
	}
	if err := s.checkAck(cmd, ack); err != nil {
		return "", err
	}
	return ack, nil
}

func (s *run) checkAck(cmd, ack protocol.Token) error {
	if !s.cfg.Session.StrictAcks {
		if ack.IsServerError() {
			log.Warn().Str("cmd", string(cmd)).Str("ack", string(ack)).Msg("server rejected command; continuing")
		}
		return nil
	}
	want := cmd
	if cmd == protocol.TokenPoll {
		if ack == protocol.TokenNotYet || ack == protocol.TokenDone {
			return nil
		}
		want = protocol.TokenNotYet
	}
	if ack != want {
		return fmt.Errorf("%w: %s acknowledged with %q, want %q", protocol.ErrProtocolViolation, cmd, string(ack), string(want))
	}
	return nil
}

func (s *run) readResult(ctx context.Context) (matrix.Matrix, error) {
	if err := s.setReadDeadline(ctx); err != nil {
		return matrix.Matrix{}, s.ioError(ctx, "read result", err)
	}
	out, err := frame.ReadResult(s.conn, uint32(s.job.Matrix.Dim()))
	if err != nil {
		if errors.Is(err, frame.ErrDimensionMismatch) {
			return matrix.Matrix{}, fmt.Errorf("%w: %w", protocol.ErrProtocolViolation, err)
		}
		return matrix.Matrix{}, s.ioError(ctx, "read result", err)
	}
	return out, nil
}

func (s *run) checkPollBudget() error {
	if limit := s.cfg.Session.MaxPolls; limit > 0 && s.polls >= limit {
		return fmt.Errorf("%w: %w: %d polls without DON", protocol.ErrTransport, protocol.ErrPollTimeout, s.polls)
	}
	if !s.pollDeadline.IsZero() && !time.Now().Before(s.pollDeadline) {
		return fmt.Errorf("%w: %w: no DON within %s", protocol.ErrTransport, protocol.ErrPollTimeout, s.cfg.Session.PollTimeout)
	}
	return nil
}

func (s *run) waitPoll(ctx context.Context) error {
	delay := session.NextPollDelay(s.cfg.Session.Poll, s.polls+1, s.rng)
	if delay <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: poll: %w", protocol.ErrTransport, err)
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: poll: %w", protocol.ErrTransport, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (s *run) setWriteDeadline(ctx context.Context) error {
	return s.setDeadline(ctx, s.conn.SetWriteDeadline, s.cfg.Session.WriteTimeout)
}

func (s *run) setReadDeadline(ctx context.Context) error {
	return s.setDeadline(ctx, s.conn.SetReadDeadline, s.cfg.Session.ReadTimeout)
}

// setDeadline applies the earliest of the I/O timeout, the context deadline
// and the poll deadline. The context is re-checked afterwards so a
// cancellation racing this call still interrupts the next read or write.
func (s *run) setDeadline(ctx context.Context, set func(time.Time) error, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if !s.pollDeadline.IsZero() && (deadline.IsZero() || s.pollDeadline.Before(deadline)) {
		deadline = s.pollDeadline
	}
	if err := set(deadline); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *run) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %s: %w: %w", protocol.ErrTransport, op, ctxErr, err)
	}
	if !s.pollDeadline.IsZero() && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(s.pollDeadline) {
		return fmt.Errorf("%w: %w: %s: no DON within %s", protocol.ErrTransport, protocol.ErrPollTimeout, op, s.cfg.Session.PollTimeout)
	}
	return fmt.Errorf("%w: %s: %w", protocol.ErrTransport, op, err)
}

func (s *run) transition(next State) {
	if s.state.Terminal() {
		log.Warn().Str("from", s.state.String()).Str("to", next.String()).Msg("compute state already terminal")
		return
	}
	log.Debug().Str("from", s.state.String()).Str("to", next.String()).Msg("compute state")
	s.state = next
	if s.cfg.OnState != nil {
		s.cfg.OnState(next)
	}
}

func (s *run) fail(err error) (Result, error) {
	failedIn := s.state
	s.transition(StateFailed)
	return Result{State: StateFailed, FailedIn: failedIn, Polls: s.polls}, err
}

// pollReply classifies a POL acknowledgement into a bounded metric label.
func pollReply(ack protocol.Token) string {
	switch {
	case ack == protocol.TokenNotYet:
		return observability.PollReplyNotYet
	case ack == protocol.TokenDone:
		return observability.PollReplyDone
	case ack.IsServerError():
		return observability.PollReplyServerError
	default:
		return observability.PollReplyOther
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, protocol.ErrPollTimeout):
		return "poll_timeout"
	case errors.Is(err, protocol.ErrProtocolViolation):
		return "protocol_violation"
	default:
		return "transport_error"
	}
}
