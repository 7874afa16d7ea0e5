package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBareCommand(t *testing.T) {
	m, err := Decode("goodbye\n")
	require.NoError(t, err)
	assert.Equal(t, CmdGoodbye, m.Command)
	assert.Empty(t, m.Params)
	assert.Equal(t, "goodbye", m.Raw())
}

func TestDecodeNormalizesCaseAndKeepsRaw(t *testing.T) {
	m, err := Decode("TEST?Param1=AbC\n")
	require.NoError(t, err)
	assert.Equal(t, "test", m.Command)
	require.Contains(t, m.Params, "param1")
	assert.Equal(t, String("AbC"), m.Params["param1"])

	// The original line survives verbatim, case included.
	assert.Equal(t, "TEST?Param1=AbC", m.Raw())
	assert.Equal(t, "TEST?Param1=AbC", m.String())
	assert.Equal(t, []byte("TEST?Param1=AbC\n"), m.ToPacket())
}

func TestDecodeTypedParameters(t *testing.T) {
	m, err := Decode("x?a=int:5&b=float:5.0&c=bool:True&d")
	require.NoError(t, err)
	assert.Equal(t, Int(5), m.Params["a"])
	assert.Equal(t, Float(5.0), m.Params["b"])
	assert.Equal(t, Bool(true), m.Params["c"])
	assert.Equal(t, None(), m.Params["d"])
}

func TestDecodeEmptyValueAndEmptyPairs(t *testing.T) {
	m, err := Decode("cmd?a=&&b=1&")
	require.NoError(t, err)
	assert.Equal(t, String(""), m.Params["a"])
	assert.Equal(t, String("1"), m.Params["b"])
	assert.Len(t, m.Params, 2)
}

// Literal whitespace around tokens is trimmed; encoded whitespace
// inside values survives because trimming runs before percent-decoding.
func TestDecodeTrimsTokens(t *testing.T) {
	m, err := Decode(" switch ? name = s1 & state = int:1 \n")
	require.NoError(t, err)
	assert.Equal(t, CmdSwitch, m.Command)
	assert.Equal(t, String("s1"), m.Params["name"])
	assert.Equal(t, Int(1), m.Params["state"])

	m, err = Decode("note?pad=%20x%20")
	require.NoError(t, err)
	assert.Equal(t, String(" x "), m.Params["pad"])
}

func TestDecodePercentEscapes(t *testing.T) {
	m, err := Decode("note?text=hello%20world%26more&q=a%3Db%3Fc")
	require.NoError(t, err)
	assert.Equal(t, String("hello world&more"), m.Params["text"])
	assert.Equal(t, String("a=b?c"), m.Params["q"])
}

func TestDecodeMalformedEscapeKeptVerbatim(t *testing.T) {
	m, err := Decode("cmd?k=50%25%zz")
	require.NoError(t, err)
	assert.Equal(t, String("50%25%zz"), m.Params["k"])
}

func TestDecodeEmptyCommand(t *testing.T) {
	for _, line := range []string{"", "\n", "?a=1\n"} {
		_, err := Decode(line)
		require.ErrorIs(t, err, ErrEmptyCommand, "line %q", line)
	}
}

func TestDecodeExtractsID(t *testing.T) {
	m, err := Decode("reset?id=abc123\n")
	require.NoError(t, err)
	assert.Equal(t, CmdReset, m.Command)
	assert.Equal(t, "abc123", m.ID)
	assert.Empty(t, m.Params)
}

func TestEncodeEmitsID(t *testing.T) {
	m := ResetComplete("abc123")
	assert.Equal(t, "reset_complete?id=abc123", m.String())
}

func TestEncodeSortsParameters(t *testing.T) {
	m := New("switch", Params{"state": Int(1), "name": String("s1")})
	assert.Equal(t, "switch?name=s1&state=int:1", Encode(m))
}

// Empty encodings are written as bare keys, which decode as None.
func TestEncodeOmitsEmptyStringValue(t *testing.T) {
	m := New("cmd", Params{"a": String(""), "b": Int(1)})
	line := Encode(m)
	assert.Equal(t, "cmd?a&b=int:1", line)

	decoded, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, None(), decoded.Params["a"])
}

func TestEncodeEscapesSpecials(t *testing.T) {
	m := New("Note", Params{"Text": String("a&b=c?d e%f")})
	line := Encode(m)
	assert.Equal(t, "note?text=a%26b%3Dc%3Fd%20e%25f", line)

	decoded, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, m.Params, decoded.Params)
}

func TestRoundTripFlatMessage(t *testing.T) {
	m := New("machine_variable", Params{
		"name":  String("credits string"),
		"value": String("$5.00"),
		"count": Int(3),
		"ok":    Bool(false),
		"prev":  None(),
	})
	m.ID = "42"

	decoded, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, m.Command, decoded.Command)
	assert.Equal(t, m.ID, decoded.ID)
	assert.Equal(t, m.Params, decoded.Params)
}

// Integral floats come back as ints after a round trip.
func TestRoundTripIntegralFloatLossy(t *testing.T) {
	m := New("x", Params{"v": Float(5.0)})
	decoded, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, Int(5), decoded.Params["v"])
}

// Type tags keep their colon literal on the wire; string payloads are
// quoted whole, colons included.
func TestEncodeKeepsTagColonsLiteral(t *testing.T) {
	m := New("x", Params{
		"a": Int(5),
		"b": Float(5.5),
		"c": Bool(true),
		"d": None(),
		"s": String("a:b"),
	})
	assert.Equal(t, "x?a=int:5&b=float:5.5&c=bool:True&d=NoneType:&s=a%3Ab", Encode(m))
}

// Tag matching runs after percent-decoding, so a string that spells a
// tagged token comes back typed. Another lossy direction the wire
// format accepts.
func TestRoundTripTagLookalikeString(t *testing.T) {
	m := New("x", Params{"v": String("int:5")})
	decoded, err := Decode(Encode(m))
	require.NoError(t, err)
	assert.Equal(t, Int(5), decoded.Params["v"])
}

func TestDecodeJSONMerge(t *testing.T) {
	doc := `{"Foo":"bar","n":5.5,"count":3,"ok":true,"prev":null,"nested":{"a":1}}`
	m, err := Decode("cfg?json=" + quote(doc))
	require.NoError(t, err)

	assert.NotContains(t, m.Params, "json")
	assert.Equal(t, String("bar"), m.Params["foo"])
	assert.Equal(t, Float(5.5), m.Params["n"])
	assert.Equal(t, Int(3), m.Params["count"])
	assert.Equal(t, Bool(true), m.Params["ok"])
	assert.Equal(t, None(), m.Params["prev"])

	nested := m.Params["nested"]
	require.Equal(t, KindStructured, nested.Kind())
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, nested.Any())
}

func TestDecodeJSONMalformedKeptAsNone(t *testing.T) {
	for _, line := range []string{
		"cfg?json=notjson",
		"cfg?json=%5B1%2C2%5D", // top level array, not an object
		"cfg?json=int:5",
		"cfg?json",
	} {
		m, err := Decode(line)
		require.NoError(t, err, "line %q", line)
		assert.Equal(t, None(), m.Params["json"], "line %q", line)
	}
}

func TestDecodeIDInsideJSON(t *testing.T) {
	m, err := Decode("ack?json=" + quote(`{"id":"77","k":"v"}`))
	require.NoError(t, err)
	assert.Equal(t, "77", m.ID)
	assert.Equal(t, String("v"), m.Params["k"])
	assert.NotContains(t, m.Params, "id")
}

func TestRoundTripStructured(t *testing.T) {
	m := New("update", Params{
		"data":  Structured(map[string]interface{}{"x": float64(1), "s": "two"}),
		"plain": String("y"),
	})

	line := Encode(m)
	require.True(t, strings.HasPrefix(line, "update?json="), "line %q", line)

	decoded, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, String("y"), decoded.Params["plain"])

	data := decoded.Params["data"]
	require.Equal(t, KindStructured, data.Kind())
	assert.Equal(t, map[string]interface{}{"x": float64(1), "s": "two"}, data.Any())
}

func TestBuilders(t *testing.T) {
	assert.Equal(t, "hello?version=1.0", Hello(Version).String())
	assert.Equal(t, "goodbye", Goodbye().String())
	assert.Equal(t, "reset", Reset().String())
	assert.Equal(t, "switch?name=s_flip&state=int:1", Switch("s_flip", 1).String())
	assert.Equal(t, "monitor_start?category=events", MonitorStart("events").String())
	assert.Equal(t, "register_trigger?event=flipper_cradle", RegisterTrigger("flipper_cradle").String())

	e := ErrorReply("unknown command", "TRIG?x", "9")
	assert.Equal(t, "error?command=TRIG%3Fx&id=9&message=unknown%20command", e.String())

	tr := Trigger("jackpot", Params{"Count": Int(2)})
	assert.Equal(t, "trigger?count=int:2&name=jackpot", tr.String())
}

func TestDMDFramePacket(t *testing.T) {
	frame := bytes.Repeat([]byte{0xAB}, DMDFrameSize)
	pkt, err := DMDFramePacket(frame)
	require.NoError(t, err)

	require.Len(t, pkt, len("dmd_frame?")+DMDFrameSize+1)
	assert.True(t, bytes.HasPrefix(pkt, []byte("dmd_frame?")))
	assert.Equal(t, byte('\n'), pkt[len(pkt)-1])
	assert.Equal(t, frame, pkt[len("dmd_frame?"):len(pkt)-1])

	_, err = DMDFramePacket(make([]byte, 100))
	require.ErrorIs(t, err, ErrFrameSize)
	_, err = DMDFramePacket(nil)
	require.ErrorIs(t, err, ErrFrameSize)
}

func FuzzDecode(f *testing.F) {
	f.Add("hello?version=1.0\n")
	f.Add("TEST?Param1=AbC")
	f.Add("x?a=int:5&b=float:5.0&c=bool:True&d")
	f.Add("cfg?json=%7B%22a%22%3A1%7D")
	f.Add("note?text=hello%20world%26more")
	f.Add("?=&==&&?")
	f.Add("cmd?k=50%25%zz")
	f.Fuzz(func(t *testing.T, line string) {
		m, err := Decode(line)
		if err != nil {
			return
		}
		if m.Command == "" {
			t.Fatal("decoded message with empty command")
		}
		// Whatever decoded must re-encode without panicking.
		_ = Encode(m)
	})
}

func FuzzRoundTripMessage(f *testing.F) {
	f.Add("hello", "version", "1.0", int64(1), true)
	f.Add("machine_variable", "name", "a b&c=d?e", int64(-7), false)
	f.Add("TRIGGER", "Name", "flipper", int64(0), true)
	f.Fuzz(func(t *testing.T, cmd, key, sval string, ival int64, bval bool) {
		if ParseValue(sval).Kind() != KindString {
			t.Skip("string value collides with a type tag")
		}
		if sval == "" {
			t.Skip("empty strings encode as bare keys and decode as None")
		}
		m := New("c"+cmd, Params{
			"k" + key: String(sval),
			"n":       Int(ival),
			"b":       Bool(bval),
			"z":       None(),
		})

		decoded, err := Decode(Encode(m))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Command != m.Command {
			t.Fatalf("command mismatch: got %q, want %q", decoded.Command, m.Command)
		}
		assert.Equal(t, m.Params, decoded.Params)
	})
}
