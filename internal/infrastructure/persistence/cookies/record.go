// Package cookies implements the persistent key-value store: short named text
// records with expiry and scope attributes, serialized into a cookie jar.
package cookies

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SameSite is the samesite attribute of a record.
type SameSite string

const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

// ParseSameSite maps a configuration string onto a SameSite value. Unknown
// values yield the empty SameSite, which omits the attribute.
func ParseSameSite(value string) SameSite {
	switch SameSite(strings.ToLower(strings.TrimSpace(value))) {
	case SameSiteStrict:
		return SameSiteStrict
	case SameSiteLax:
		return SameSiteLax
	case SameSiteNone:
		return SameSiteNone
	default:
		return ""
	}
}

// Record is one serialized cookie. Name and Value hold the decoded text.
type Record struct {
	Name     string
	Value    string
	Expires  time.Time
	MaxAge   *int
	Path     string
	Domain   string
	Secure   bool
	SameSite SameSite
}

// componentEscaper undoes the escapes url.QueryEscape applies to characters
// that encodeURIComponent leaves alone, and spells spaces as %20.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// Encode percent-encodes s the way encodeURIComponent does.
func Encode(s string) string {
	return componentEscaper.Replace(url.QueryEscape(s))
}

// Decode reverses Encode. Malformed escapes are returned verbatim.
func Decode(s string) string {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// String serializes the record:
// <name>=<value>[; expires=<date>][; path=<p>][; domain=<d>][; secure][; samesite=<s>]
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(Encode(r.Name))
	b.WriteByte('=')
	b.WriteString(Encode(r.Value))

	if !r.Expires.IsZero() {
		b.WriteString("; expires=")
		b.WriteString(r.Expires.UTC().Format(http.TimeFormat))
	}
	if r.Path != "" {
		b.WriteString("; path=")
		b.WriteString(r.Path)
	}
	if r.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(r.Domain)
	}
	if r.Secure {
		b.WriteString("; secure")
	}
	if r.SameSite != "" {
		b.WriteString("; samesite=")
		b.WriteString(string(r.SameSite))
	}
	return b.String()
}

// ExpiredAt reports whether a jar should discard the record at now.
func (r Record) ExpiredAt(now time.Time) bool {
	if r.MaxAge != nil {
		return *r.MaxAge <= 0
	}
	return !r.Expires.IsZero() && !now.Before(r.Expires)
}

// ParseRecord parses a serialized record. Unknown attributes are ignored.
func ParseRecord(raw string) (Record, error) {
	parts := strings.Split(raw, ";")
	name, value, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !ok || strings.TrimSpace(name) == "" {
		return Record{}, fmt.Errorf("malformed cookie record %q", raw)
	}

	record := Record{
		Name:  Decode(strings.TrimSpace(name)),
		Value: Decode(strings.TrimSpace(value)),
	}

	for _, attr := range parts[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(attr), "=")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "expires":
			expires, err := http.ParseTime(strings.TrimSpace(val))
			if err != nil {
				return Record{}, fmt.Errorf("malformed expires in %q: %w", raw, err)
			}
			record.Expires = expires.UTC()
		case "max-age":
			seconds, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return Record{}, fmt.Errorf("malformed max-age in %q: %w", raw, err)
			}
			record.MaxAge = &seconds
		case "path":
			record.Path = strings.TrimSpace(val)
		case "domain":
			record.Domain = strings.TrimSpace(val)
		case "secure":
			record.Secure = true
		case "samesite":
			record.SameSite = ParseSameSite(val)
		}
	}

	return record, nil
}

// pair is one name=value entry of a cookie header, still encoded.
type pair struct {
	name  string
	value string
}

// splitHeader splits a raw cookie header into its encoded pairs in order.
// Segments without '=' are skipped.
func splitHeader(header string) []pair {
	var pairs []pair
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimLeft(part, " ")
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		pairs = append(pairs, pair{name: strings.TrimSpace(name), value: strings.TrimSpace(value)})
	}
	return pairs
}

func joinHeader(pairs []pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.name+"="+p.value)
	}
	return strings.Join(parts, "; ")
}
