package redis

import (
	"fmt"
	"strings"

	"github.com/vecscope/vecscope/internal/domain"
	"github.com/vecscope/vecscope/internal/domain/filter"
)

// buildWhere translates a metadata clause into FT.SEARCH query syntax.
// Metadata fields are indexed as TAG for strings and NUMERIC for numbers, so
// each predicate maps to a tag or range expression on "meta_<field>". Returns
// "" for an empty clause. A clause this backend cannot express is rejected
// with domain.ErrQueryRejected.
func buildWhere(c filter.Clause) (string, error) {
	if c.IsZero() {
		return "", nil
	}
	if c.IsUnparseable() {
		return "", fmt.Errorf("%w: only flat conjunctions of field predicates are supported", domain.ErrQueryRejected)
	}

	parts := make([]string, 0, len(c.Predicates()))
	for _, p := range c.Predicates() {
		expr, err := buildPredicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	return strings.Join(parts, " "), nil
}

func buildPredicate(p filter.Predicate) (string, error) {
	field := metaField(p.Field())

	switch p.Op() {
	case filter.Eq, filter.Ne:
		var expr string
		switch v := p.Value().(type) {
		case string:
			expr = fmt.Sprintf("@%s:{%s}", field, tagEscaper.Replace(v))
		case float64:
			expr = fmt.Sprintf("@%s:[%g %g]", field, v, v)
		default:
			return "", fmt.Errorf("%w: %s requires a string or number value", domain.ErrQueryRejected, p.Op())
		}
		if p.Op() == filter.Ne {
			expr = "-" + expr
		}
		return expr, nil

	case filter.Gt, filter.Lt:
		v, ok := p.Value().(float64)
		if !ok {
			return "", fmt.Errorf("%w: %s supports only numeric values", domain.ErrQueryRejected, p.Op())
		}
		if p.Op() == filter.Gt {
			return fmt.Sprintf("@%s:[(%g +inf]", field, v), nil
		}
		return fmt.Sprintf("@%s:[-inf (%g]", field, v), nil

	case filter.In:
		vals, ok := p.Value().([]string)
		if !ok || len(vals) == 0 {
			return "", fmt.Errorf("%w: in requires a non-empty string list", domain.ErrQueryRejected)
		}
		escaped := make([]string, len(vals))
		for i, v := range vals {
			escaped[i] = tagEscaper.Replace(v)
		}
		return fmt.Sprintf("@%s:{%s}", field, strings.Join(escaped, "|")), nil

	default:
		return "", fmt.Errorf("%w: unsupported operator %q", domain.ErrQueryRejected, p.Op())
	}
}

// metaField maps a metadata key to its index attribute name.
func metaField(key string) string {
	return "meta_" + tagEscaper.Replace(key)
}

// --- Query escaping ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`:`, `\:`,
	`;`, `\;`,
)
