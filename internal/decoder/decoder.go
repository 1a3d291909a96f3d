package decoder

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// Strategy names, in default priority order
const (
	StrategyEUCJP    = "euc_jp"
	StrategyUTF8     = "utf-8"
	StrategyCP932    = "cp932"
	StrategyShiftJIS = "shift_jis"
	StrategyLatin1   = "latin-1"

	// StrategyReplace is reported when every strategy failed and the bytes
	// were force-decoded as UTF-8 with U+FFFD substitutions.
	StrategyReplace = "utf-8-replace"
)

// Strategy is one named attempt to decode bytes. Decode returns ok=false when
// the input is not valid under the strategy's encoding.
type Strategy struct {
	Name   string
	Decode func(b []byte) (string, bool)
}

// DefaultStrategies returns the default decoding chain. The first entry that
// decodes cleanly wins, so for input valid under several encodings the
// earliest one is used.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyEUCJP, Decode: strictDecode(japanese.EUCJP)},
		{Name: StrategyUTF8, Decode: decodeUTF8},
		{Name: StrategyCP932, Decode: strictDecode(japanese.ShiftJIS)},
		{Name: StrategyShiftJIS, Decode: strictDecode(japanese.ShiftJIS)},
		{Name: StrategyLatin1, Decode: strictDecode(charmap.ISO8859_1)},
	}
}

// Decoder converts raw file bytes to text. It never fails.
type Decoder struct {
	strategies []Strategy
}

// New creates a Decoder using the given chain, or DefaultStrategies when none
// are provided
func New(strategies ...Strategy) *Decoder {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	chain := make([]Strategy, len(strategies))
	copy(chain, strategies)
	return &Decoder{strategies: chain}
}

// Decode returns the text of b under the first strategy that accepts it
func (d *Decoder) Decode(b []byte) string {
	text, _ := d.DecodeWith(b)
	return text
}

// DecodeWith returns the decoded text and the name of the strategy that
// produced it. StrategyReplace is returned when no strategy accepted b.
func (d *Decoder) DecodeWith(b []byte) (string, string) {
	for _, s := range d.strategies {
		if text, ok := s.Decode(b); ok {
			return text, s.Name
		}
	}
	return ForceDecode(b), StrategyReplace
}

// Names returns the strategy names in priority order
func (d *Decoder) Names() []string {
	names := make([]string, len(d.strategies))
	for i, s := range d.strategies {
		names[i] = s.Name
	}
	return names
}

// ForceDecode decodes b as UTF-8, substituting U+FFFD for every byte that is
// not part of a valid sequence
func ForceDecode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var buf bytes.Buffer
	buf.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			buf.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		buf.Write(b[:size])
		b = b[size:]
	}
	return buf.String()
}

func decodeUTF8(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// strictDecode wraps an x/text encoding so that any substitution is treated
// as a decode failure. x/text decoders replace invalid input with U+FFFD
// instead of returning an error, and none of the wrapped legacy encodings can
// represent U+FFFD themselves.
func strictDecode(enc encoding.Encoding) func([]byte) (string, bool) {
	return func(b []byte) (string, bool) {
		out, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			return "", false
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			return "", false
		}
		return string(out), true
	}
}
