// Package idstable computes VERAX's content-derived, timestamp-free
// identifiers (spec.md I5: identical inputs always produce the identical
// ID). Every ID in the system is built the same way: join the identifying
// fields with a NUL separator, sha256 the result, hex-encode, and take a
// fixed-length prefix. Centralizing this here means every package that
// needs a stable ID (discovery, planner, detect) uses the exact same
// construction instead of re-deriving it.
package idstable

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const prefixLen = 16

func digest(parts ...string) string {
	joined := strings.Join(parts, "\x00")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:prefixLen]
}

// RuntimeNavID computes the stable ID for a runtime navigation target
// (spec.md §4.4): "runtime-nav-" + sha256(normalized_href :: tag_name ::
// selector_path :: role)[0..16].
func RuntimeNavID(normalizedHref, tagName, selectorPath, role string) string {
	return "runtime-nav-" + digest(normalizedHref, tagName, selectorPath, role)
}

// ExpectationID computes the stable ID for a static expectation derived
// from source code, keyed on its kind, selector, and source location.
func ExpectationID(kind, selector, file string, line int) string {
	return "expect-" + digest(kind, selector, file, strconv.Itoa(line))
}

// FindingID computes the stable ID for a finding, keyed on the attempt it
// was derived from and the finding type.
func FindingID(expectationID, findingType string) string {
	return "finding-" + digest(expectationID, findingType)
}
