package proxy_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sheperdglobal-alt/imap-email-filter/proxy"
)

// Functions

func newConnectionPair(t *testing.T) (*proxy.Connection, *proxy.Connection) {

	t.Helper()

	sideA, sideB := net.Pipe()

	deadline := time.Now().Add(5 * time.Second)
	sideA.SetDeadline(deadline)
	sideB.SetDeadline(deadline)

	t.Cleanup(func() {
		sideA.Close()
		sideB.Close()
	})

	return proxy.NewConnection(sideA), proxy.NewConnection(sideB)
}

// TestConnectionSendReceive executes a black-box test on
// line writes and reads over a connection pair.
func TestConnectionSendReceive(t *testing.T) {

	connA, connB := newConnectionPair(t)

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- connA.Send("a1 NOOP")
	}()

	line, err := connB.Receive()
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendReceive] Expected receive to succeed but received: %v", err)
	}

	if line != "a1 NOOP" {
		t.Fatalf("[proxy.TestConnectionSendReceive] Expected line 'a1 NOOP' but received: '%s'", line)
	}

	err = <-sendErr
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendReceive] Expected send to succeed but received: %v", err)
	}

	go func() {
		sendErr <- connA.SendRaw([]byte("* OK ready\r\n"))
	}()

	raw, err := connB.ReceiveRaw()
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendReceive] Expected raw receive to succeed but received: %v", err)
	}

	if raw != "* OK ready\r\n" {
		t.Fatalf("[proxy.TestConnectionSendReceive] Expected raw line with terminator but received: '%s'", raw)
	}

	err = <-sendErr
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendReceive] Expected raw send to succeed but received: %v", err)
	}
}

// TestConnectionLiteralInterleaving executes a black-box
// test on alternating line and exact-octet reads. Literal
// octets have to arrive through the same buffered reader
// as the line that announced them.
func TestConnectionLiteralInterleaving(t *testing.T) {

	connA, connB := newConnectionPair(t)

	stream := "a1 APPEND INBOX {5}\r\nhello\r\n* 1 EXISTS\r\n"

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- connA.SendRaw([]byte(stream))
	}()

	line, err := connB.Receive()
	if err != nil {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected announcing line but received error: %v", err)
	}

	if line != "a1 APPEND INBOX {5}" {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected line 'a1 APPEND INBOX {5}' but received: '%s'", line)
	}

	literal, err := connB.ReadLiteral(5)
	if err != nil {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected 5 literal octets but received error: %v", err)
	}

	if string(literal) != "hello" {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected literal 'hello' but received: '%s'", literal)
	}

	line, err = connB.Receive()
	if err != nil {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected empty trailer line but received error: %v", err)
	}

	if line != "" {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected empty trailer line but received: '%s'", line)
	}

	line, err = connB.Receive()
	if err != nil {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected follow-up line but received error: %v", err)
	}

	if line != "* 1 EXISTS" {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected line '* 1 EXISTS' but received: '%s'", line)
	}

	err = <-sendErr
	if err != nil {
		t.Fatalf("[proxy.TestConnectionLiteralInterleaving] Expected stream send to succeed but received: %v", err)
	}
}

// TestConnectionSendRawEmpty executes a black-box test on
// zero length raw writes. They must complete immediately
// without touching the socket.
func TestConnectionSendRawEmpty(t *testing.T) {

	connA, connB := newConnectionPair(t)

	err := connA.SendRaw(nil)
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendRawEmpty] Expected empty raw send to succeed but received: %v", err)
	}

	err = connA.SendRaw([]byte{})
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendRawEmpty] Expected empty raw send to succeed but received: %v", err)
	}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- connA.Send("a2 DONE")
	}()

	line, err := connB.Receive()
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendRawEmpty] Expected follow-up line but received error: %v", err)
	}

	if line != "a2 DONE" {
		t.Fatalf("[proxy.TestConnectionSendRawEmpty] Expected line 'a2 DONE' but received: '%s'", line)
	}

	err = <-sendErr
	if err != nil {
		t.Fatalf("[proxy.TestConnectionSendRawEmpty] Expected send to succeed but received: %v", err)
	}
}

// TestConnectionTerminate executes a black-box test on
// connection teardown.
func TestConnectionTerminate(t *testing.T) {

	connA, connB := newConnectionPair(t)

	connA.Terminate()
	connA.Terminate()

	empty := &proxy.Connection{}
	empty.Terminate()

	_, err := connB.Receive()
	if err != io.EOF {
		t.Fatalf("[proxy.TestConnectionTerminate] Expected EOF after teardown but received: %v", err)
	}
}
