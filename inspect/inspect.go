package inspect

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	_ "github.com/emersion/go-message/charset"
)

// Variables

// amountExpr matches announced monetary figures such as
// 'Total: 12,345.67' in subject or body text. The number
// group accepts comma grouped thousands and either comma
// or period as decimal separator.
var amountExpr = regexp.MustCompile(`(?i)(amount|total|sum|subtotal|grand total)\D{0,10}(\d+(?:,\d{3})*[\.,]\d{2,})`)

// Structs

// Meta bundles what the inspector extracted from one
// intercepted message. These values are the only inputs
// to the hold-or-deliver decision.
type Meta struct {
	Sender  string
	Subject string
	Amount  float64
}

// Functions

// Inspect parses raw message octets as received during
// APPEND and extracts sender, subject, and the largest
// announced monetary amount. Inspect never fails, a
// message the MIME reader rejects degrades to best-effort
// header access and an amount of zero.
func Inspect(raw []byte) *Meta {

	meta := new(Meta)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if ((err != nil) && (message.IsUnknownCharset(err) != true)) || (mr == nil) {
		meta.Sender, meta.Subject = fallbackHeaders(raw)
		return meta
	}

	meta.Sender = mr.Header.Get("From")

	subject, err := mr.Header.Subject()
	if err != nil {
		subject = mr.Header.Get("Subject")
	}
	meta.Subject = subject

	// Only multipart messages restrict body collection to
	// their text/plain parts. A singleton body is taken as
	// it is, whatever its content type.
	topType, _, err := mr.Header.ContentType()
	multipart := (err == nil) && strings.HasPrefix(topType, "multipart/")

	var body strings.Builder

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if (err != nil) && (message.IsUnknownCharset(err) != true) {
			// Keep whatever was collected up to the
			// part that could not be read.
			break
		}
		if part == nil {
			continue
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if ok != true {
			// Attachments are not inspected.
			continue
		}

		if multipart {

			partType, _, err := header.ContentType()
			if (err != nil) || (partType != "text/plain") {
				continue
			}
		}

		text, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		body.Write(text)
		body.WriteString("\n")
	}

	meta.Amount = ExtractAmount(meta.Subject + "\n" + body.String())

	return meta
}

// ExtractAmount scans text for announced monetary figures
// and returns the largest one found, zero if none matched.
// A number carrying both comma and period is read with the
// comma grouping thousands, a number carrying only a comma
// is read with the comma as decimal separator.
func ExtractAmount(text string) float64 {

	amount := 0.0

	for _, match := range amountExpr.FindAllStringSubmatch(text, -1) {

		num := match[2]

		if strings.Contains(num, ",") && strings.Contains(num, ".") {
			num = strings.Replace(num, ",", "", -1)
		} else {
			num = strings.Replace(num, ",", ".", -1)
		}

		value, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}

		if value > amount {
			amount = value
		}
	}

	return amount
}

// fallbackHeaders scans the raw header block for From and
// Subject lines when full MIME parsing is not possible.
func fallbackHeaders(raw []byte) (string, string) {

	sender := ""
	subject := ""

	head := raw
	if sep := bytes.Index(raw, []byte("\r\n\r\n")); sep >= 0 {
		head = raw[:sep]
	} else if sep := bytes.Index(raw, []byte("\n\n")); sep >= 0 {
		head = raw[:sep]
	}

	for _, line := range strings.Split(string(head), "\n") {

		line = strings.TrimRight(line, "\r")
		lower := strings.ToLower(line)

		if strings.HasPrefix(lower, "from:") {
			sender = strings.TrimSpace(line[5:])
		} else if strings.HasPrefix(lower, "subject:") {
			subject = strings.TrimSpace(line[8:])
		}
	}

	return sender, subject
}
