package ingest

import (
	"bufio"
	"io"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/showdeck/importer/internal/model"
	"github.com/showdeck/importer/internal/normalize"
)

var (
	forwardMarkerRe = regexp.MustCompile(`(?i)^-{2,}\s*(forwarded|original) message\s*-{2,}$`)
	attributionRe   = regexp.MustCompile(`(?i)^on .{0,120} wrote:$`)
	headerLineRe    = regexp.MustCompile(`(?i)^(from|to|cc|bcc|sent|reply-to):\s`)
	// Date headers carry a weekday and clock time; a plain "Date: Nov 3, 2025"
	// line is a booking fact and must survive.
	headerDateRe = regexp.MustCompile(`(?i)^date:\s+\w{3},\s.*\d{2}:\d{2}:\d{2}`)
)

// FromEmail captures a forwarded email. The RFC 5322 header block is parsed
// when present; the Subject survives as a labeled line at the top of the body
// so the extractor treats it as a title hint. Quoting markers, forward
// separators and embedded header blocks are stripped.
func (b *Builder) FromEmail(raw string) model.RawSource {
	subject, body := splitEmail(raw)

	cleaned := cleanEmailBody(body)
	if subject != "" {
		cleaned = "Subject: " + subject + "\n\n" + cleaned
	}

	norm := normalize.Text(cleaned)
	return model.RawSource{
		ID:        uuid.New().String(),
		Kind:      model.SourceEmail,
		RawText:   norm,
		WordCount: normalize.WordCount(norm),
	}
}

// splitEmail returns the Subject header and the message body. Input that is
// not a parseable message is treated as a bare body.
func splitEmail(raw string) (subject, body string) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return "", raw
	}
	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return msg.Header.Get("Subject"), ""
	}
	return msg.Header.Get("Subject"), string(bodyBytes)
}

// cleanEmailBody strips quote prefixes, forward separators, attribution
// lines, signature blocks and embedded header blocks from forwarded chains.
func cleanEmailBody(body string) string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Text()

		// Signature delimiter ends the useful body.
		if strings.TrimRight(line, " ") == "--" {
			break
		}

		if forwardMarkerRe.MatchString(strings.TrimSpace(line)) {
			continue
		}

		line = stripQuoteMarkers(line)
		trimmed := strings.TrimSpace(line)

		if attributionRe.MatchString(trimmed) {
			continue
		}
		// Header lines from embedded forwarded chains carry no facts the
		// extractor wants, except Subject which is kept as a labeled line.
		if headerLineRe.MatchString(trimmed) || headerDateRe.MatchString(trimmed) {
			continue
		}

		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func stripQuoteMarkers(line string) string {
	for {
		trimmed := strings.TrimLeft(line, " ")
		if !strings.HasPrefix(trimmed, ">") {
			return line
		}
		line = strings.TrimPrefix(trimmed, ">")
	}
}
