package secrets

import (
	"encoding/json"
	"fmt"
	"strings"
)

const redacted = "[REDACTED]"

// Token is an opaque join token. Its value is only reachable through Reveal.
type Token struct {
	value string
}

// NewToken wraps a raw token value, trimming surrounding whitespace.
func NewToken(value string) Token {
	return Token{value: strings.TrimSpace(value)}
}

// Reveal returns the raw value. Callers must not log or persist it.
func (t Token) Reveal() string { return t.value }

// IsZero reports whether the token is empty.
func (t Token) IsZero() bool { return t.value == "" }

// String implements fmt.Stringer.
func (t Token) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (t Token) GoString() string { return "secrets.Token{" + redacted + "}" }

// Format implements fmt.Formatter so that every verb, including %x and %q, is redacted.
func (t Token) Format(f fmt.State, verb rune) {
	if verb == 'v' && f.Flag('#') {
		_, _ = f.Write([]byte(t.GoString()))
		return
	}
	_, _ = f.Write([]byte(redacted))
}

// MarshalJSON implements json.Marshaler.
func (t Token) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// MarshalLog implements logr.Marshaler.
func (t Token) MarshalLog() any { return redacted }

// Version identifies one stored value of a secret container. Versions start at 1.
type Version int64
