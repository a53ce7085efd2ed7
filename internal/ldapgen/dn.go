// Package ldapgen generates LDAP distinguished names, search filters, and
// ldapsearch command lines from slash-delimited organizational paths.
package ldapgen

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// splitPath breaks "example.com/A/B" into the domain and path segments.
func splitPath(p string) (domain string, segments []string, err error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(p), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, fmt.Errorf("empty path")
	}
	domain = parts[0]
	if !strings.Contains(domain, ".") {
		return "", nil, fmt.Errorf("path %q must start with a dotted domain", p)
	}
	for _, seg := range parts[1:] {
		if seg == "" {
			return "", nil, fmt.Errorf("path %q has an empty segment", p)
		}
		segments = append(segments, seg)
	}
	return domain, segments, nil
}

// domainComponents converts "example.com" to "DC=example,DC=com".
func domainComponents(domain string) string {
	labels := strings.Split(domain, ".")
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = "DC=" + escapeDN(l)
	}
	return strings.Join(parts, ",")
}

// DirectoryDN converts a slash path to a container DN: every segment is an
// OU, in reverse order, followed by the domain components.
// "example.com/A/B" becomes "OU=B,OU=A,DC=example,DC=com".
func DirectoryDN(path string) (string, error) {
	domain, segments, err := splitPath(path)
	if err != nil {
		return "", err
	}

	var parts []string
	for i := len(segments) - 1; i >= 0; i-- {
		parts = append(parts, "OU="+escapeDN(segments[i]))
	}
	parts = append(parts, domainComponents(domain))
	return strings.Join(parts, ","), nil
}

// GroupDN converts a slash path to an object DN: the last segment is the
// CN, the rest are OUs in reverse order.
// "example.com/A/B" becomes "CN=B,OU=A,DC=example,DC=com".
func GroupDN(path string) (string, error) {
	domain, segments, err := splitPath(path)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("path %q names no object below the domain", path)
	}

	parts := []string{"CN=" + escapeDN(segments[len(segments)-1])}
	for i := len(segments) - 2; i >= 0; i-- {
		parts = append(parts, "OU="+escapeDN(segments[i]))
	}
	parts = append(parts, domainComponents(domain))
	return strings.Join(parts, ","), nil
}

// escapeDN escapes the characters RFC 4514 reserves in attribute values.
func escapeDN(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';', '=':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(s)-1 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DecodeAttribute reverses a Base64-encoded attribute value (the form LDIF
// uses for values with unsafe characters) back to a readable string.
func DecodeAttribute(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", fmt.Errorf("invalid base64: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("decoded value is not valid UTF-8")
	}
	return string(raw), nil
}
