package openapi

import (
	"strconv"
	"strings"
)

// PathParam is the placeholder substituted for identifier-like segments.
const PathParam = "{id}"

// maxLiteralSegment is the longest segment kept verbatim; anything longer is
// treated as an opaque identifier (UUIDs, hashes, tokens).
const maxLiteralSegment = 20

// NormalizePath turns a concrete URL path into a path template by replacing
// segments that look like identifiers with PathParam. A segment qualifies if
// it is a base-10 integer or longer than 20 bytes. Empty segments, and with
// them leading and trailing slashes, are preserved. The function is
// idempotent because PathParam itself never qualifies.
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if isIdentifierSegment(part) {
			parts[i] = PathParam
		}
	}
	return strings.Join(parts, "/")
}

func isIdentifierSegment(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
		return true
	}
	return len(segment) > maxLiteralSegment
}
