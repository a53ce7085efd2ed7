package ldapgen

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// RowKind distinguishes the two row types the filter builder accepts.
type RowKind string

const (
	// KindGroup rows hold a slash path to a group; membership is matched
	// against the group's DN.
	KindGroup RowKind = "group"
	// KindUser rows hold an account name.
	KindUser RowKind = "user"
)

// Row is one accumulated filter condition.
type Row struct {
	Kind  RowKind `json:"kind"`
	Value string  `json:"value"`
}

// Op combines rows with AND or OR.
type Op string

const (
	OpAnd Op = "&"
	OpOr  Op = "|"
)

// condition renders a single row as an LDAP filter term. Filter metacharacters
// in user-supplied values are escaped per RFC 4515.
func (r Row) condition() (string, error) {
	switch r.Kind {
	case KindGroup:
		dn, err := GroupDN(r.Value)
		if err != nil {
			return "", fmt.Errorf("group row %q: %w", r.Value, err)
		}
		return "(memberOf=" + ldap.EscapeFilter(dn) + ")", nil
	case KindUser:
		return "(sAMAccountName=" + ldap.EscapeFilter(r.Value) + ")", nil
	default:
		return "", fmt.Errorf("unknown row kind %q", r.Kind)
	}
}

// BuildFilter assembles rows into a single filter expression. One row
// yields its bare condition; multiple rows are wrapped in (&...) or (|...).
func BuildFilter(op Op, rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no rows to build a filter from")
	}
	if op != OpAnd && op != OpOr {
		return "", fmt.Errorf("unknown operator %q", op)
	}

	conditions := make([]string, 0, len(rows))
	for _, row := range rows {
		c, err := row.condition()
		if err != nil {
			return "", err
		}
		conditions = append(conditions, c)
	}

	if len(conditions) == 1 {
		return conditions[0], nil
	}
	return "(" + string(op) + strings.Join(conditions, "") + ")", nil
}

// SearchCommand renders a complete ldapsearch invocation for the filter.
// The filter is single-quoted for the shell; attrs are appended verbatim.
func SearchCommand(serverURL, bindDN, baseDN, filter string, attrs []string) string {
	var b strings.Builder
	b.WriteString("ldapsearch -LLL")
	if serverURL != "" {
		b.WriteString(" -H " + serverURL)
	}
	if bindDN != "" {
		b.WriteString(" -D " + shellQuote(bindDN) + " -W")
	}
	if baseDN != "" {
		b.WriteString(" -b " + shellQuote(baseDN))
	}
	b.WriteString(" " + shellQuote(filter))
	for _, a := range attrs {
		b.WriteString(" " + a)
	}
	return b.String()
}

// shellQuote single-quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
