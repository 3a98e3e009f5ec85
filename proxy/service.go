package proxy

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/sheperdglobal-alt/imap-email-filter/config"
	"github.com/sheperdglobal-alt/imap-email-filter/crypto"
	"github.com/sheperdglobal-alt/imap-email-filter/imap"
	"github.com/sheperdglobal-alt/imap-email-filter/inspect"
	"github.com/sheperdglobal-alt/imap-email-filter/policy"
	"github.com/sheperdglobal-alt/imap-email-filter/quarantine"
)

// Structs

type service struct {
	logger  log.Logger
	dialer  Dialer
	store   *quarantine.Store
	filter  config.Filter
	metrics *Metrics
}

// Dialer opens one fresh connection to the upstream
// IMAP server for a starting session.
type Dialer func() (net.Conn, error)

// Interfaces

// Service defines the interface the interception proxy
// provides to its listeners.
type Service interface {

	// HandleConnection relays one accepted client
	// connection against a fresh upstream connection
	// until either side terminates the session. APPEND
	// commands are intercepted and inspected, all other
	// traffic passes through unchanged.
	HandleConnection(conn net.Conn) error
}

// Functions

// NewService takes in all required parameters for
// running the client-facing side of the proxy and
// returns a service struct wrapping all information.
func NewService(logger log.Logger, dialer Dialer, store *quarantine.Store, filter config.Filter, metrics *Metrics) Service {

	return &service{
		logger:  logger,
		dialer:  dialer,
		store:   store,
		filter:  filter,
		metrics: metrics,
	}
}

// NewUpstreamDialer returns the dialer used in regular
// operation. It connects to the configured upstream
// host, with implicit TLS verified against the system
// trust store when configured.
func NewUpstreamDialer(upstream config.Upstream) Dialer {

	addr := fmt.Sprintf("%s:%d", upstream.Host, upstream.Port)

	if upstream.UseTLS != true {

		return func() (net.Conn, error) {
			return net.DialTimeout("tcp", addr, 30*time.Second)
		}
	}

	tlsConfig := crypto.NewUpstreamTLSConfig(upstream.Host)

	return func() (net.Conn, error) {
		return tls.DialWithDialer(&net.Dialer{Timeout: 30 * time.Second}, "tcp", addr, tlsConfig)
	}
}

// leadToken extracts the first token of a line. It fills
// the tag slot when a line could not be parsed as an
// IMAP command but still has to be relayed.
func leadToken(line string) string {

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// HandleConnection dials the upstream server, relays its
// greeting and afterwards loops over client commands
// until the session ends. Only APPEND and LOGOUT receive
// special treatment, everything else is relayed.
func (s *service) HandleConnection(conn net.Conn) error {

	s.metrics.Sessions.Add(1)

	sess := &Session{
		Client: NewConnection(conn),
		State:  StateNotAuthenticated,
	}

	defer sess.Terminate()

	upstreamConn, err := s.dialer()
	if err != nil {
		return fmt.Errorf("failed to connect to upstream IMAP server with: %v", err)
	}

	sess.Upstream = NewConnection(upstreamConn)

	// Relay the upstream greeting verbatim, the client
	// must believe it talks to the upstream directly.
	// An endpoint whose greeting is not an untagged
	// status line does not speak IMAP and is not bridged.
	greeting, err := sess.Upstream.ReceiveRaw()
	if err != nil {
		return fmt.Errorf("failed to receive upstream greeting with: %v", err)
	}

	if imap.IsUntagged(strings.TrimRight(greeting, "\r\n")) != true {
		return fmt.Errorf("upstream greeting from %s is not an untagged status line", sess.Upstream.Addr)
	}

	err = sess.Client.SendRaw([]byte(greeting))
	if err != nil {
		return fmt.Errorf("failed to relay greeting to client %s with: %v", sess.Client.Addr, err)
	}

	level.Debug(s.logger).Log("msg", fmt.Sprintf("proxying session for client %s", sess.Client.Addr))

	for sess.State != StateLogout {

		rawReq, err := sess.Client.ReceiveRaw()
		if err != nil {

			if err != io.EOF {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while receiving from client %s", sess.Client.Addr),
					"err", err,
				)
			}

			break
		}

		req, err := imap.ParseRequest(strings.TrimRight(rawReq, "\r\n"))
		if err != nil {

			// Unparseable lines are relayed unchanged, the
			// upstream server is the authority on protocol
			// errors. The leading token doubles as the tag
			// to watch for in the upstream answer.
			if _, ok := s.relay(sess, rawReq, leadToken(rawReq)); ok != true {
				break
			}

			continue
		}

		cmdOK := false

		switch req.Command {

		case "APPEND":
			_, cmdOK = s.append(sess, rawReq, req)

		case "LOGOUT":
			cmdOK = s.logout(sess, rawReq, req)

		case "STARTTLS":

			// Answered locally. TLS on the client leg is
			// available through the TLS listener only.
			cmdOK = (sess.Client.Send(fmt.Sprintf("%s NO STARTTLS is not supported", req.Tag)) == nil)

		default:

			var taggedResp string

			taggedResp, cmdOK = s.relay(sess, rawReq, req.Tag)
			if cmdOK {
				sess.Transition(req, taggedResp)
			}
		}

		if cmdOK != true {
			break
		}
	}

	level.Debug(s.logger).Log(
		"msg", fmt.Sprintf("session for client %s ended", sess.Client.Addr),
		"state", sess.State.String(),
	)

	return nil
}

// relay forwards one client command verbatim to the
// upstream server and streams every response back to
// the client until the tagged completion for it was
// seen. Literals announced on the command line or any
// follow-up line are relayed transparently, so commands
// like LOGIN or SEARCH with literal arguments keep
// working through the proxy. It returns the tagged
// completion line and whether the session may continue.
func (s *service) relay(sess *Session, rawReq string, tag string) (string, bool) {

	s.metrics.Relayed.Add(1)

	line := rawReq

	// Forward the command line together with all literal
	// octets it announces. After each literal the client
	// sends another line which may announce the next one.
	for {

		err := sess.Upstream.SendRaw([]byte(line))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while forwarding line for client %s upstream", sess.Client.Addr),
				"err", err,
			)
			return "", false
		}

		lit, ok := imap.ParseLiteral(strings.TrimRight(line, "\r\n"))
		if ok != true {
			break
		}

		if lit.Sync {

			taggedResp, ok := s.awaitContinuation(sess, tag, true)
			if ok != true {
				return "", false
			}

			// The upstream refused the literal with its
			// tagged completion, already relayed.
			if taggedResp != "" {
				return taggedResp, true
			}
		}

		_, err = io.CopyN(sess.Upstream.Conn, sess.Client.Reader, int64(lit.NumBytes))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while relaying literal for client %s upstream", sess.Client.Addr),
				"err", err,
			)
			return "", false
		}

		line, err = sess.Client.ReceiveRaw()
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while receiving literal continuation from client %s", sess.Client.Addr),
				"err", err,
			)
			return "", false
		}
	}

	return s.relayResponses(sess, tag)
}

// relayResponses streams upstream response lines to the
// client until the tagged completion for tag shows up,
// including literal octets a response line announces.
// An empty tag relays exactly one line.
func (s *service) relayResponses(sess *Session, tag string) (string, bool) {

	for {

		rawResp, err := sess.Upstream.ReceiveRaw()
		if err != nil {

			if err == io.EOF {
				level.Debug(s.logger).Log("msg", fmt.Sprintf("upstream closed connection for client %s", sess.Client.Addr))
			} else {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while receiving upstream response for client %s", sess.Client.Addr),
					"err", err,
				)
			}

			return "", false
		}

		err = sess.Client.SendRaw([]byte(rawResp))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while relaying response to client %s", sess.Client.Addr),
				"err", err,
			)
			return "", false
		}

		resp := strings.TrimRight(rawResp, "\r\n")

		if imap.IsContinuation(resp) {

			// The upstream handed the turn back to the
			// client, as during AUTHENTICATE rounds or
			// IDLE. Forward exactly one client line and
			// resume relaying responses.
			rawLine, err := sess.Client.ReceiveRaw()
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while receiving continuation data from client %s", sess.Client.Addr),
					"err", err,
				)
				return "", false
			}

			err = sess.Upstream.SendRaw([]byte(rawLine))
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while forwarding continuation data for client %s upstream", sess.Client.Addr),
					"err", err,
				)
				return "", false
			}

			continue
		}

		lit, ok := imap.ParseLiteral(resp)
		if ok {

			_, err = io.CopyN(sess.Client.Conn, sess.Upstream.Reader, int64(lit.NumBytes))
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while relaying response literal to client %s", sess.Client.Addr),
					"err", err,
				)
				return "", false
			}

			continue
		}

		if (tag == "") || imap.IsTagged(resp, tag) {
			return resp, true
		}
	}
}

// awaitContinuation reads upstream responses until the
// upstream either grants a continuation or ends the
// command with its tagged completion. Untagged lines are
// relayed right away. The continuation itself is relayed
// only when forwardCont is set, the proxy consumes it
// otherwise because the client already received a
// synthesized one. A non-empty returned line is the
// tagged completion that ended the command.
func (s *service) awaitContinuation(sess *Session, tag string, forwardCont bool) (string, bool) {

	for {

		rawResp, err := sess.Upstream.ReceiveRaw()
		if err != nil {

			if err == io.EOF {
				level.Debug(s.logger).Log("msg", fmt.Sprintf("upstream closed connection for client %s", sess.Client.Addr))
			} else {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while awaiting upstream continuation for client %s", sess.Client.Addr),
					"err", err,
				)
			}

			return "", false
		}

		resp := strings.TrimRight(rawResp, "\r\n")

		if imap.IsContinuation(resp) {

			if forwardCont {

				err = sess.Client.SendRaw([]byte(rawResp))
				if err != nil {
					level.Error(s.logger).Log(
						"msg", fmt.Sprintf("error while relaying continuation to client %s", sess.Client.Addr),
						"err", err,
					)
					return "", false
				}
			}

			return "", true
		}

		err = sess.Client.SendRaw([]byte(rawResp))
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while relaying response to client %s", sess.Client.Addr),
				"err", err,
			)
			return "", false
		}

		lit, ok := imap.ParseLiteral(resp)
		if ok {

			_, err = io.CopyN(sess.Client.Conn, sess.Upstream.Reader, int64(lit.NumBytes))
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while relaying response literal to client %s", sess.Client.Addr),
					"err", err,
				)
				return "", false
			}

			continue
		}

		if (tag != "") && imap.IsTagged(resp, tag) {
			return resp, true
		}
	}
}

// append intercepts one APPEND command. The announced
// message is read from the client in full before any
// decision is taken, a held message causes no upstream
// traffic at all. It reports whether the message was
// held and whether the session may continue.
func (s *service) append(sess *Session, rawReq string, req *imap.Request) (bool, bool) {

	lit, ok := imap.ParseLiteral(req.Payload)
	if ok != true {

		// APPEND without a literal announcement, relay it
		// like any other command.
		_, ok = s.relay(sess, rawReq, req.Tag)
		return false, ok
	}

	// The client waits for a continuation before it sends
	// the octets of a synchronizing literal. Grant it
	// without upstream involvement.
	if lit.Sync {

		err := sess.Client.Send("+ Ready for literal data")
		if err != nil {
			level.Error(s.logger).Log(
				"msg", fmt.Sprintf("error while sending continuation to client %s", sess.Client.Addr),
				"err", err,
			)
			return false, false
		}
	}

	msgBuffer, err := sess.Client.ReadLiteral(lit.NumBytes)
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while reading appended message from client %s", sess.Client.Addr),
			"err", err,
		)
		return false, false
	}

	// The literal octets are followed by the line that
	// ends the APPEND command, which has to be empty.
	trailer, err := sess.Client.Receive()
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while reading APPEND trailer from client %s", sess.Client.Addr),
			"err", err,
		)
		return false, false
	}

	if trailer != "" {

		// A non-empty trailer announces another literal
		// (MULTIAPPEND), which the proxy does not relay.
		sess.Client.Send(fmt.Sprintf("%s BAD APPEND with multiple messages is not supported", req.Tag))

		level.Error(s.logger).Log("msg", fmt.Sprintf("rejected multi-literal APPEND from client %s", sess.Client.Addr))

		return false, false
	}

	meta := inspect.Inspect(msgBuffer)

	if policy.Decide(meta, s.filter) {

		id, err := s.store.Insert(msgBuffer, meta)
		if err == nil {

			err = sess.Client.Send(fmt.Sprintf("%s OK APPEND completed (held by proxy)", req.Tag))
			if err != nil {
				level.Error(s.logger).Log(
					"msg", fmt.Sprintf("error while confirming held APPEND to client %s", sess.Client.Addr),
					"err", err,
				)
				return true, false
			}

			s.metrics.Held.Add(1)

			level.Info(s.logger).Log(
				"msg", "message held in quarantine",
				"id", id,
				"sender", meta.Sender,
				"subject", meta.Subject,
				"amount", meta.Amount,
			)

			return true, true
		}

		// A message the store cannot hold is delivered
		// instead, it must not be lost.
		level.Error(s.logger).Log("msg", "failed to insert message into quarantine", "err", err)
	}

	return false, s.deliver(sess, rawReq, req, lit, msgBuffer)
}

// deliver replays a fully buffered APPEND against the
// upstream server and relays its verdict to the client.
func (s *service) deliver(sess *Session, rawReq string, req *imap.Request, lit *imap.Literal, msgBuffer []byte) bool {

	err := sess.Upstream.SendRaw([]byte(rawReq))
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while forwarding APPEND for client %s upstream", sess.Client.Addr),
			"err", err,
		)
		return false
	}

	if lit.Sync {

		// The upstream continuation is consumed here, the
		// client already received the synthesized one.
		taggedResp, ok := s.awaitContinuation(sess, req.Tag, false)
		if ok != true {
			return false
		}

		// The upstream refused the APPEND with its tagged
		// completion, already relayed.
		if taggedResp != "" {
			return true
		}
	}

	err = sess.Upstream.SendRaw(msgBuffer)
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while forwarding message for client %s upstream", sess.Client.Addr),
			"err", err,
		)
		return false
	}

	err = sess.Upstream.Send("")
	if err != nil {
		level.Error(s.logger).Log(
			"msg", fmt.Sprintf("error while terminating APPEND for client %s upstream", sess.Client.Addr),
			"err", err,
		)
		return false
	}

	_, ok := s.relayResponses(sess, req.Tag)
	if ok != true {
		return false
	}

	s.metrics.Delivered.Add(1)

	level.Debug(s.logger).Log("msg", fmt.Sprintf("delivered APPEND from client %s upstream", sess.Client.Addr))

	return true
}

// logout relays the LOGOUT exchange and marks the
// session finished afterwards.
func (s *service) logout(sess *Session, rawReq string, req *imap.Request) bool {

	_, ok := s.relay(sess, rawReq, req.Tag)

	sess.State = StateLogout

	return ok
}
