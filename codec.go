package docsmcp

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Encode serializes a message to compact JSON followed by a single newline.
// The jsonrpc field is forced to "2.0" so every outbound message carries it.
func Encode(msg Message) ([]byte, error) {
	msg.JSONRPC = JSONRPCVersion

	bs, err := jsoniter.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	// Append newline to maintain message framing protocol.
	return append(bs, '\n'), nil
}

// DecodeLine parses one newline-delimited line into a structurally validated
// message. It fails with ErrMalformedMessage for invalid JSON, a missing or
// mismatched jsonrpc version, or a shape that is none of the three message
// kinds.
func DecodeLine(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")

	var msg Message
	if err := jsoniter.UnmarshalFromString(line, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: invalid json: %v", ErrMalformedMessage, err)
	}
	if msg.JSONRPC != JSONRPCVersion {
		return Message{}, fmt.Errorf("%w: unsupported jsonrpc version %q", ErrMalformedMessage, msg.JSONRPC)
	}
	if msg.Kind() == KindInvalid {
		return Message{}, fmt.Errorf("%w: message is neither request, notification nor response", ErrMalformedMessage)
	}
	return msg, nil
}

// Decoder reads newline-delimited messages from a byte stream. Bytes may
// arrive in arbitrary chunks; Next blocks until a full line terminated by
// '\n' is available.
type Decoder struct {
	reader *bufio.Reader
}

// NewDecoder returns a Decoder buffering the given reader.
func NewDecoder(r io.Reader) *Decoder {
	// Use bufio.Reader instead of bufio.Scanner to avoid max token size errors.
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next complete message from the stream. Empty lines are
// skipped. A malformed line yields ErrMalformedMessage and leaves the decoder
// usable for subsequent lines; any other error is an I/O failure terminating
// the stream. A line truncated by EOF is reported as malformed.
func (d *Decoder) Next() (Message, error) {
	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) != "" {
				return Message{}, fmt.Errorf("%w: truncated line at end of stream", ErrMalformedMessage)
			}
			return Message{}, err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		return DecodeLine(line)
	}
}
