package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrEmptyCommand is returned when a wire line carries no command name.
var ErrEmptyCommand = errors.New("empty command")

// DMDFrameSize is the exact payload length of a display frame.
const DMDFrameSize = 4096

// ErrFrameSize is returned for display frames of the wrong length.
var ErrFrameSize = fmt.Errorf("frame payload must be exactly %d bytes", DMDFrameSize)

var dmdPrefix = []byte(CmdDMDFrame + "?")

// quote percent-encodes s, escaping everything outside unreserved
// characters. Spaces become %20, never +.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// unquote reverses quote. Malformed escapes yield the input unchanged
// so decoding stays total.
func unquote(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

// encodeValue renders v as a wire token. Only the payload is
// percent-encoded; the type tag keeps its literal colon so decoders can
// prefix-match it. Strings are quoted whole, which also escapes any
// colon that could read as a tag.
func encodeValue(v Value) string {
	switch v.Kind() {
	case KindString:
		return quote(v.Str())
	case KindInt, KindBool, KindNone:
		return v.String()
	case KindFloat:
		tok := v.String()
		i := strings.IndexByte(tok, ':')
		return tok[:i+1] + quote(tok[i+1:])
	}
	return quote(v.String())
}

// Encode renders m as a wire line without the terminator. Parameters are
// written in sorted order. If any value is structured, the whole
// parameter set travels as one json document so nesting survives the
// round trip.
func Encode(m *Message) string {
	params := make(Params, len(m.Params)+1)
	structured := false
	for k, v := range m.Params {
		params[k] = v
		if v.Kind() == KindStructured {
			structured = true
		}
	}
	if m.ID != "" {
		params[paramID] = String(m.ID)
	}

	var b strings.Builder
	b.WriteString(quote(strings.ToLower(m.Command)))
	if len(params) == 0 {
		return b.String()
	}
	b.WriteByte('?')

	if structured {
		doc := make(map[string]interface{}, len(params))
		for k, v := range params {
			doc[k] = v.Any()
		}
		text, err := json.Marshal(doc)
		if err != nil {
			text = []byte("{}")
		}
		b.WriteString(paramJSON)
		b.WriteByte('=')
		b.WriteString(quote(string(text)))
		return b.String()
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(quote(k))
		// A bare key stands for an empty encoding, so empty strings
		// come back as None.
		if ev := encodeValue(params[k]); ev != "" {
			b.WriteByte('=')
			b.WriteString(ev)
		}
	}
	return b.String()
}

// Decode parses one wire line, with or without its terminator. The line
// is split on the framing characters first and each piece is trimmed
// and percent-decoded afterwards, so encoded ?, & and = inside values
// survive. The reserved json parameter is expanded into the parameter
// map and the reserved id parameter becomes the message id.
func Decode(line string) (*Message, error) {
	text := strings.TrimRight(line, "\r\n")

	head, query, hasQuery := strings.Cut(text, "?")
	command := strings.ToLower(unquote(strings.TrimSpace(head)))
	if command == "" {
		return nil, ErrEmptyCommand
	}

	m := &Message{Command: command, Params: Params{}, raw: text}
	if hasQuery {
		for _, pair := range strings.Split(query, "&") {
			k, v, hasValue := strings.Cut(pair, "=")
			key := strings.ToLower(unquote(strings.TrimSpace(k)))
			if key == "" {
				continue
			}
			if !hasValue {
				m.Params[key] = None()
				continue
			}
			m.Params[key] = ParseValue(unquote(strings.TrimSpace(v)))
		}
	}

	if doc, ok := m.Params[paramJSON]; ok {
		m.Params[paramJSON] = None()
		if doc.Kind() == KindString {
			var fields map[string]interface{}
			if err := json.Unmarshal([]byte(doc.Str()), &fields); err == nil {
				delete(m.Params, paramJSON)
				for k, v := range fields {
					m.Params[strings.ToLower(k)] = fromJSON(v)
				}
			}
		}
	}

	if id, ok := m.Params[paramID]; ok {
		delete(m.Params, paramID)
		if id.Kind() == KindString {
			m.ID = id.Str()
		} else {
			m.ID = id.String()
		}
	}

	return m, nil
}

// DMDFramePacket frames a raw display frame: the dmd_frame marker, the
// pixel payload untouched by the codec, then the terminator.
func DMDFramePacket(frame []byte) ([]byte, error) {
	if len(frame) != DMDFrameSize {
		return nil, fmt.Errorf("dmd frame: %w (got %d)", ErrFrameSize, len(frame))
	}
	buf := make([]byte, 0, len(dmdPrefix)+DMDFrameSize+1)
	buf = append(buf, dmdPrefix...)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	return buf, nil
}
