package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrDuplicateParameter is returned when a request carries the same parameter more than once.
var ErrDuplicateParameter = errors.New("duplicate parameter")

// Param is a single key/value pair on the wire.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of parameters. Order is preserved when encoding so
// responses are deterministic.
type Params []Param

// Get returns the first value stored under key.
func (p Params) Get(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	for _, kv := range p {
		if kv.Key == key {
			return true
		}
	}
	return false
}

// Values converts the list into url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for _, kv := range p {
		v.Add(kv.Key, kv.Value)
	}
	return v
}

// Encode form-encodes the list in order. Spaces become %20 rather than '+'.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(kv.Key))
		b.WriteByte('=')
		b.WriteString(escape(kv.Value))
	}
	return b.String()
}

// AddParamsToBody appends params to an existing form body.
func AddParamsToBody(body string, params Params) string {
	encoded := params.Encode()
	switch {
	case encoded == "":
		return body
	case body == "":
		return encoded
	default:
		return body + "&" + encoded
	}
}

// ParseForm parses a form-encoded string and rejects repeated keys.
func ParseForm(raw string) (url.Values, error) {
	v, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	for k, vals := range v {
		if len(vals) > 1 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, k)
		}
	}
	return v, nil
}

func escape(s string) string {
	// QueryEscape turns a literal '+' into %2B, so every remaining '+' is a space
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
