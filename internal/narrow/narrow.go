package narrow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/zfetch/internal/zulip"
)

// Term is one operator/operand pair of a narrow, e.g. stream:design.
type Term struct {
	Operator string `json:"operator" toml:"operator"`
	Operand  string `json:"operand" toml:"operand"`
	Negated  bool   `json:"negated,omitempty" toml:"negated"`
}

func (t Term) String() string {
	s := t.Operator + ":" + t.Operand
	if t.Negated {
		return "-" + s
	}
	return s
}

// Filter is a conjunction of terms. The empty filter matches everything.
type Filter []Term

// Parse reads a space separated list of operator:operand terms. A leading
// "-" negates a term. Bare words become search terms.
func Parse(s string) (Filter, error) {
	var f Filter
	for _, word := range strings.Fields(s) {
		t := Term{}
		if strings.HasPrefix(word, "-") {
			t.Negated = true
			word = word[1:]
		}
		op, operand, ok := strings.Cut(word, ":")
		if !ok {
			t.Operator, t.Operand = "search", word
			f = append(f, t)
			continue
		}
		if op == "" || operand == "" {
			return nil, fmt.Errorf("invalid narrow term %q", word)
		}
		t.Operator = strings.ToLower(op)
		t.Operand = operand
		f = append(f, t)
	}
	return f, nil
}

func (f Filter) String() string {
	parts := make([]string, len(f))
	for i, t := range f {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Match reports whether a message belongs to the narrow. Operators that
// cannot be evaluated locally (search, near, ...) never match.
func (f Filter) Match(m *zulip.Message) bool {
	for _, t := range f {
		ok, known := matchTerm(t, m)
		if !known {
			return false
		}
		if ok == t.Negated {
			return false
		}
	}
	return true
}

func matchTerm(t Term, m *zulip.Message) (match, known bool) {
	switch t.Operator {
	case "stream":
		return strings.EqualFold(m.StreamName(), t.Operand), true
	case "topic", "subject":
		return m.Type == "stream" && strings.EqualFold(m.Subject, t.Operand), true
	case "sender":
		return strings.EqualFold(m.SenderEmail, t.Operand), true
	case "pm-with":
		if !m.IsPrivate() {
			return false, true
		}
		var emails []string
		for _, r := range m.Recipients() {
			emails = append(emails, strings.ToLower(r.Email))
		}
		for _, e := range splitEmails(t.Operand) {
			if !slices.Contains(emails, e) {
				return false, true
			}
		}
		return true, true
	case "is":
		switch t.Operand {
		case "private":
			return m.IsPrivate(), true
		case "starred":
			return m.Starred || m.HasFlag("starred"), true
		case "mentioned":
			return m.Mentioned || m.HasFlag("mentioned"), true
		case "unread":
			return m.Unread || !m.HasFlag("read"), true
		}
	}
	return false, false
}

func splitEmails(operand string) []string {
	var out []string
	for _, e := range strings.Split(operand, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
