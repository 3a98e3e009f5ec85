package inspect_test

import (
	"strings"
	"testing"

	"github.com/sheperdglobal-alt/imap-email-filter/inspect"
)

// Structs

var extractAmountTests = []struct {
	in  string
	out float64
}{
	{"Total: 2500.00", 2500.00},
	{"total due: 12.50", 12.50},
	{"Amount: 99,95", 99.95},
	{"Total: 12,345.67", 12345.67},
	{"Grand Total: 1,234,567.89", 1234567.89},
	{"Subtotal: 10.00 Total: 20.00 Sum: 15.00", 20.00},
	{"Total: twelve", 0},
	{"no figures here", 0},
	{"", 0},
}

// Functions

// TestExtractAmount executes a black-box table test
// on the monetary amount extraction.
func TestExtractAmount(t *testing.T) {

	for i, tt := range extractAmountTests {

		amount := inspect.ExtractAmount(tt.in)

		if amount != tt.out {
			t.Fatalf("[inspect.TestExtractAmount] %d: Expected amount '%f' for '%s' but received '%f'\n", i, tt.out, tt.in, amount)
		}
	}
}

// TestInspectPlain executes a black-box test on
// inspection of a simple non-multipart message.
func TestInspectPlain(t *testing.T) {

	raw := strings.Join([]string{
		"From: billing@example.com",
		"To: archive@example.com",
		"Subject: Invoice 4711",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Dear customer,",
		"",
		"Total: 2500.00",
		"",
	}, "\r\n")

	meta := inspect.Inspect([]byte(raw))

	if meta.Sender != "billing@example.com" {
		t.Fatalf("[inspect.TestInspectPlain] Expected sender '%s' but received '%s'\n", "billing@example.com", meta.Sender)
	}

	if meta.Subject != "Invoice 4711" {
		t.Fatalf("[inspect.TestInspectPlain] Expected subject '%s' but received '%s'\n", "Invoice 4711", meta.Subject)
	}

	if meta.Amount != 2500.00 {
		t.Fatalf("[inspect.TestInspectPlain] Expected amount '2500.00' but received '%f'\n", meta.Amount)
	}
}

// TestInspectMultipart executes a black-box test on
// inspection of a multipart message. Only text/plain
// parts may contribute to the inspected body.
func TestInspectMultipart(t *testing.T) {

	raw := strings.Join([]string{
		"From: billing@example.com",
		"Subject: Invoice 4712",
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=frontier",
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Total: 100.00",
		"--frontier",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Total: 9999.99</p>",
		"--frontier--",
		"",
	}, "\r\n")

	meta := inspect.Inspect([]byte(raw))

	if meta.Amount != 100.00 {
		t.Fatalf("[inspect.TestInspectMultipart] Expected amount '100.00' but received '%f'\n", meta.Amount)
	}
}

// TestInspectEncodedPart executes a black-box test on
// inspection of a base64 encoded text part.
func TestInspectEncodedPart(t *testing.T) {

	raw := strings.Join([]string{
		"From: billing@example.com",
		"Subject: Invoice 4713",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=frontier",
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"R3JhbmQgVG90YWw6IDc3Ny43Nwo=",
		"--frontier--",
		"",
	}, "\r\n")

	meta := inspect.Inspect([]byte(raw))

	if meta.Amount != 777.77 {
		t.Fatalf("[inspect.TestInspectEncodedPart] Expected amount '777.77' but received '%f'\n", meta.Amount)
	}
}

// TestInspectQuotedPrintable executes a black-box test
// on inspection of a quoted-printable encoded body. The
// undecoded form carries no recognizable figure, so a
// match proves the transfer encoding was removed.
func TestInspectQuotedPrintable(t *testing.T) {

	raw := strings.Join([]string{
		"From: billing@example.com",
		"Subject: Invoice 4714",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Total=3A 4=2C321.00",
		"",
	}, "\r\n")

	meta := inspect.Inspect([]byte(raw))

	if meta.Amount != 4321.00 {
		t.Fatalf("[inspect.TestInspectQuotedPrintable] Expected amount '4321.00' but received '%f'\n", meta.Amount)
	}
}

// TestInspectSubjectOnly executes a black-box test on
// amount extraction from the subject header.
func TestInspectSubjectOnly(t *testing.T) {

	raw := strings.Join([]string{
		"From: billing@example.com",
		"Subject: Order sum: 555.55",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"No figures in the body.",
		"",
	}, "\r\n")

	meta := inspect.Inspect([]byte(raw))

	if meta.Amount != 555.55 {
		t.Fatalf("[inspect.TestInspectSubjectOnly] Expected amount '555.55' but received '%f'\n", meta.Amount)
	}
}

// TestInspectMalformed executes a black-box test on
// inspection of input that is no valid message at all.
func TestInspectMalformed(t *testing.T) {

	meta := inspect.Inspect([]byte("\x00\x01\x02 this is not a message"))

	if meta.Amount != 0 {
		t.Fatalf("[inspect.TestInspectMalformed] Expected amount '0' but received '%f'\n", meta.Amount)
	}
}
