// Package query turns user-built filter conditions into the backend's
// filter expression syntax for the record resource.
package query

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/formbase/formbase-go/model"
)

// Join is the combination strategy applied across all conditions of one
// query. Nested or mixed grouping is not supported: a query is either a flat
// conjunction or a flat disjunction.
type Join string

const (
	JoinAnd Join = "AND"
	JoinOr  Join = "OR"
)

// ParseJoin normalizes a join string, defaulting to AND.
func ParseJoin(s string) Join {
	if strings.EqualFold(s, string(JoinOr)) {
		return JoinOr
	}
	return JoinAnd
}

// Path addresses a field inside the record value bag using the backend's
// JSON text-extraction syntax.
func Path(field string) string {
	return "values->>" + field
}

// Build constructs the /record endpoint restricting to one form plus the
// given conditions. Output is deterministic: condition order is preserved,
// nothing is deduplicated.
//
// The two join modes encode differently, matching what the destination
// server accepts: AND conditions become independent percent-encoded
// `path=op.value` parameters combined implicitly, while OR conditions are
// gathered into a single `or=(path.op.value,...)` group whose parts are left
// unencoded for the server's own tokenizer.
func Build(formID int, conds []model.Condition, join Join) string {
	base := fmt.Sprintf("/record?form_id=eq.%d", formID)
	if len(conds) == 0 {
		return base
	}

	if join == JoinOr {
		parts := make([]string, 0, len(conds))
		for _, c := range conds {
			parts = append(parts, fmt.Sprintf("%s.%s.%s", Path(c.Field), c.Op.Code, c.Value))
		}
		return fmt.Sprintf("%s&or=(%s)", base, strings.Join(parts, ","))
	}

	var sb strings.Builder
	sb.WriteString(base)
	for _, c := range conds {
		sb.WriteByte('&')
		sb.WriteString(url.QueryEscape(Path(c.Field)))
		sb.WriteByte('=')
		sb.WriteString(c.Op.Code)
		sb.WriteByte('.')
		sb.WriteString(url.QueryEscape(c.Value))
	}
	return sb.String()
}
