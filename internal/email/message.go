package email

import (
	"bufio"
	"bytes"
	"fmt"
	"mime"
	"net/textproto"
	"strings"
	"time"
)

// TemplateHeader carries the template id of a rendered message so development senders can key on it.
const TemplateHeader = "X-Soom-Template"

// BuildMessage assembles a plain text RFC 5322 message.
func BuildMessage(from string, to []string, subject, body, templateID string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	if templateID != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", TemplateHeader, templateID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}

// TemplateIDFromMessage returns the template header of a raw message, or "unknown".
func TemplateIDFromMessage(raw []byte) string {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(raw)))
	header, err := r.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return "unknown"
	}
	if id := header.Get(TemplateHeader); id != "" {
		return id
	}
	return "unknown"
}
