package narrow

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Directory resolves emails and stream names to server ids.
type Directory interface {
	UserIDByEmail(email string) (int64, bool)
	StreamIDByName(name string) (int64, bool)
}

// WireTerm is a term in the form the server expects. Operand is a string,
// an id, or a list of ids.
type WireTerm struct {
	Operator string `json:"operator"`
	Operand  any    `json:"operand"`
	Negated  bool   `json:"negated,omitempty"`
}

var (
	idListOperators = []string{"pm-with"}
	idOperators     = []string{"sender", "group-pm-with", "stream"}
)

// Canonicalize rewrites operands to the id-based form where the directory
// knows the id, leaving them as text otherwise.
func Canonicalize(f Filter, dir Directory) []WireTerm {
	out := make([]WireTerm, 0, len(f))
	for _, t := range f {
		wt := WireTerm{Operator: t.Operator, Operand: t.Operand, Negated: t.Negated}
		switch {
		case dir == nil:
		case slices.Contains(idListOperators, t.Operator):
			if ids, ok := userIDs(t.Operand, dir); ok {
				wt.Operand = ids
			}
		case slices.Contains(idOperators, t.Operator):
			if t.Operator == "stream" {
				if id, ok := dir.StreamIDByName(t.Operand); ok {
					wt.Operand = id
				}
				break
			}
			if id, ok := dir.UserIDByEmail(t.Operand); ok {
				wt.Operand = id
			}
		}
		out = append(out, wt)
	}
	return out
}

// Encode returns the JSON value of the narrow query parameter, or "" for an
// empty filter.
func Encode(f Filter, dir Directory) (string, error) {
	if len(f) == 0 {
		return "", nil
	}
	b, err := json.Marshal(Canonicalize(f, dir))
	if err != nil {
		return "", fmt.Errorf("encode narrow: %w", err)
	}
	return string(b), nil
}

func userIDs(operand string, dir Directory) ([]int64, bool) {
	emails := splitEmails(operand)
	if len(emails) == 0 {
		return nil, false
	}
	ids := make([]int64, 0, len(emails))
	for _, e := range emails {
		id, ok := dir.UserIDByEmail(e)
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
