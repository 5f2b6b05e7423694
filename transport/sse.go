// ABOUTME: SSE framing decoder for the supervisor trace stream: data-only events, one JSON trace event each.
// ABOUTME: Reads from an io.Reader, tolerates CR/LF/CRLF line endings, comments, and skips undecodable payloads.
package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"log"
	"strings"

	"github.com/2389-research/kicksight/trace"
)

// Decoder reads trace events from an SSE-framed stream. The supervisor
// backend only uses "data:" lines (no event types, ids, or retry hints), so
// the decoder accumulates data lines until a blank line dispatches the event
// and decodes the joined payload as one JSON trace event.
type Decoder struct {
	scanner   *lineScanner
	done      bool
	dataLines []string
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{scanner: newLineScanner(r)}
}

// Next returns the next decoded trace event. It returns io.EOF when the
// stream ends. Events whose payload does not decode as JSON are logged and
// skipped rather than failing the stream.
func (d *Decoder) Next() (trace.Event, error) {
	for {
		data, err := d.nextData()
		if err != nil {
			return trace.Event{}, err
		}

		var ev trace.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			log.Printf("transport skipping undecodable event err=%v data=%q", err, clip(data, 120))
			continue
		}
		return ev, nil
	}
}

// nextData returns the raw data payload of the next SSE event.
func (d *Decoder) nextData() (string, error) {
	if d.done {
		return "", io.EOF
	}

	for {
		line, err := d.scanner.readLine()
		if err != nil {
			if err == io.EOF {
				d.done = true
				// Dispatch a trailing event that was never followed by a
				// blank line (truncated streams still deliver their data).
				if len(d.dataLines) > 0 {
					data := strings.Join(d.dataLines, "\n")
					d.dataLines = nil
					return data, nil
				}
				return "", io.EOF
			}
			return "", err
		}

		// A blank line dispatches the accumulated event.
		if line == "" {
			if len(d.dataLines) == 0 {
				continue
			}
			data := strings.Join(d.dataLines, "\n")
			d.dataLines = nil
			return data, nil
		}

		// Comment lines start with ':'.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if value, ok := strings.CutPrefix(line, "data:"); ok {
			d.dataLines = append(d.dataLines, strings.TrimPrefix(value, " "))
		}
		// Other SSE fields are not part of this protocol and are ignored.
	}
}

// lineScanner reads lines handling CR, LF, and CRLF terminators.
// bufio.Scanner only handles LF and CRLF natively.
type lineScanner struct {
	reader *bufio.Reader
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{reader: bufio.NewReaderSize(r, 4096)}
}

func (s *lineScanner) readLine() (string, error) {
	var line strings.Builder
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			if err == io.EOF && line.Len() > 0 {
				return line.String(), nil
			}
			return "", err
		}

		switch b {
		case '\n':
			return line.String(), nil
		case '\r':
			// Consume the LF of a CRLF pair if present.
			if next, err := s.reader.ReadByte(); err == nil && next != '\n' {
				_ = s.reader.UnreadByte()
			}
			return line.String(), nil
		default:
			line.WriteByte(b)
		}
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
