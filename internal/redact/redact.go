// Package redact implements the Evidence Redactor (spec.md §4.1): pure,
// stateless scrubbing of URLs, headers, cookies, and bodies so that no
// captured artifact ever contains a live credential. There is no teacher
// equivalent for this package — codeNERD has no redaction concern — so it
// is built directly from the spec's literal contract.
package redact

import (
	"encoding/base64"
	"regexp"
	"sort"
	"strings"
)

// Placeholder is the exact literal substituted for every redacted value.
const Placeholder = "***REDACTED***"

// maxDepth bounds recursive descent into bodies; at the limit the value is
// returned as-is rather than recursed into further.
const maxDepth = 15

// Counters tracks how many values were redacted, for reporting.
type Counters struct {
	HeadersRedacted int
	URLParamsRedacted int
	BodyFieldsRedacted int
	StringsScrubbed int
}

var sensitiveHeaderNames = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-session-token":     true,
	"x-access-token":      true,
	"api-key":             true,
	"proxy-authorization": true,
}

var sensitiveQueryParams = map[string]bool{
	"token":         true,
	"auth":          true,
	"access_token":  true,
	"id_token":      true,
	"refresh_token": true,
	"api_key":       true,
	"key":           true,
}

var sensitiveBodyKeys = map[string]bool{
	"token":         true,
	"api_key":       true,
	"access_token":  true,
	"id_token":      true,
	"refresh_token": true,
	"password":      true,
	"secret":        true,
	"apikey":        true,
	"auth":          true,
	"authorization": true,
	"key":           true,
}

var bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]+=*`)

// jwtPattern matches three dot-separated base64url segments. The spec
// requires at least one uppercase letter or digit in the first segment to
// avoid false-positiving on lowercase dotted words.
var jwtPattern = regexp.MustCompile(`[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

func hasUpperOrDigit(s string) bool {
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// Headers redacts values of sensitive header names (case-insensitive) and
// increments counters.HeadersRedacted for each one replaced. Keys are
// iterated in sorted order so output is deterministic regardless of map
// iteration order, even though the return value is itself a map.
func Headers(headers map[string]string, counters *Counters) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if sensitiveHeaderNames[strings.ToLower(k)] {
			out[k] = Placeholder
			if counters != nil {
				counters.HeadersRedacted++
			}
			continue
		}
		out[k] = headers[k]
	}
	return out
}

// URL scrubs sensitive query parameters, bearer tokens, and JWT-like
// triplets out of a URL or arbitrary string containing one.
func URL(s string) string {
	return URLCounted(s, nil)
}

// URLCounted is URL but also increments counters for each redaction made.
func URLCounted(s string, counters *Counters) string {
	result := scrubQueryParams(s, counters)
	result = bearerPattern.ReplaceAllStringFunc(result, func(m string) string {
		if counters != nil {
			counters.URLParamsRedacted++
		}
		return "Bearer " + Placeholder
	})
	result = jwtPattern.ReplaceAllStringFunc(result, func(m string) string {
		parts := strings.SplitN(m, ".", 3)
		if len(parts) != 3 || !hasUpperOrDigit(parts[0]) || !looksBase64URL(parts[0]) {
			return m
		}
		if counters != nil {
			counters.URLParamsRedacted++
		}
		return Placeholder
	})
	return result
}

func looksBase64URL(s string) bool {
	if len(s) < 4 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

func scrubQueryParams(s string, counters *Counters) string {
	qIdx := strings.Index(s, "?")
	if qIdx < 0 {
		return s
	}
	prefix := s[:qIdx+1]
	query := s[qIdx+1:]
	fragment := ""
	if h := strings.Index(query, "#"); h >= 0 {
		fragment = query[h:]
		query = query[:h]
	}

	pairs := strings.Split(query, "&")
	for i, pair := range pairs {
		eq := strings.Index(pair, "=")
		if eq < 0 {
			continue
		}
		name := pair[:eq]
		if sensitiveQueryParams[strings.ToLower(name)] {
			pairs[i] = name + "=" + Placeholder
			if counters != nil {
				counters.URLParamsRedacted++
			}
		}
	}
	return prefix + strings.Join(pairs, "&") + fragment
}

// Body recurses into maps and sequences, replacing sensitive-keyed map
// values wholesale and token-scrubbing string leaves. Recursion is bounded
// at maxDepth; a value reached at the limit is returned unchanged.
func Body(value interface{}) interface{} {
	return bodyAt(value, nil, 0)
}

// BodyCounted is Body but increments counters for each redaction made.
func BodyCounted(value interface{}, counters *Counters) interface{} {
	return bodyAt(value, counters, 0)
}

func bodyAt(value interface{}, counters *Counters, depth int) interface{} {
	if depth >= maxDepth {
		return value
	}
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if sensitiveBodyKeys[strings.ToLower(k)] {
				out[k] = Placeholder
				if counters != nil {
					counters.BodyFieldsRedacted++
				}
				continue
			}
			out[k] = bodyAt(v[k], counters, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = bodyAt(item, counters, depth+1)
		}
		return out
	case string:
		scrubbed := URLCounted(v, counters)
		if scrubbed != v && counters != nil {
			counters.StringsScrubbed++
		}
		return scrubbed
	default:
		return value
	}
}

// Cookie is the minimal cookie shape the redactor understands; other
// packages convert their own cookie representations into this one.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
	SameSite string `json:"sameSite,omitempty"`
}

// RedactedCookie retains structural metadata and replaces Value with the
// placeholder.
func RedactedCookie(c Cookie) Cookie {
	c.Value = Placeholder
	return c
}
