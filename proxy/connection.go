package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

// Structs

// Connection wraps one side of a proxied IMAP session,
// either the mail client talking to us or the upstream
// server we relay its traffic to.
type Connection struct {
	Conn   net.Conn
	Reader *bufio.Reader
	Addr   string
}

// Functions

// NewConnection equips a freshly accepted or dialled
// socket with a buffered reader. All further reads on
// the socket go through this reader so that literal
// octets directly follow the line announcing them.
func NewConnection(conn net.Conn) *Connection {

	return &Connection{
		Conn:   conn,
		Reader: bufio.NewReader(conn),
		Addr:   conn.RemoteAddr().String(),
	}
}

// Send takes in a text line without terminator and
// writes it to the connection followed by CRLF. In
// case an error occurs, this method returns it to
// the calling function.
func (c *Connection) Send(text string) error {

	_, err := fmt.Fprintf(c.Conn, "%s\r\n", text)
	if err != nil {
		return err
	}

	return nil
}

// SendRaw writes supplied octets to the connection
// without altering them in any way.
func (c *Connection) SendRaw(data []byte) error {

	if len(data) == 0 {
		return nil
	}

	_, err := c.Conn.Write(data)
	if err != nil {
		return err
	}

	return nil
}

// Receive awaits the next line from the connection and
// returns it with trailing newline symbols removed.
func (c *Connection) Receive() (string, error) {

	text, err := c.ReceiveRaw()
	if err != nil {
		return "", err
	}

	return strings.TrimRight(text, "\r\n"), nil
}

// ReceiveRaw awaits the next line from the connection
// and returns it including its terminator so that it
// can be relayed to the other side byte for byte.
func (c *Connection) ReceiveRaw() (string, error) {

	text, err := c.Reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return text, nil
}

// ReadLiteral reads exactly numBytes octets of literal
// data from the connection. It fails if the connection
// closes before that amount arrived.
func (c *Connection) ReadLiteral(numBytes int) ([]byte, error) {

	buf := make([]byte, numBytes)

	_, err := io.ReadFull(c.Reader, buf)
	if err != nil {
		return nil, err
	}

	return buf, nil
}

// Terminate closes the underlying socket. Errors from
// an already closed connection are not reported.
func (c *Connection) Terminate() {

	if c.Conn != nil {
		c.Conn.Close()
	}
}
