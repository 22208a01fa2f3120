// Package inspect parses CS:GO-style item inspect links into their
// constituent fields. A link identifies an item instance held by a Steam
// account or listed on the market, plus a proof token the GC uses to
// authorize the query.
package inspect

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidLink is returned when a link is missing required fields or has
// neither an owner id nor a market listing id.
var ErrInvalidLink = errors.New("inspect: invalid link")

// Link is an immutable, parsed inspect-link value object.
type Link struct {
	S string // owner Steam id, "0" if the link is market-scoped
	A string // asset id (decimal)
	D string // proof token (a.k.a. "D" parameter)
	M string // market listing id, "0" if the link is owner-scoped
}

// Parse extracts {S, A, D, M} from a raw inspect link of the form
//
//	steam://rungame/730/.../+csgo_econ_action_preview S<owner>A<asset>D<token>
//	steam://rungame/730/.../+csgo_econ_action_preview M<listing>A<asset>D<token>
//
// or an equivalent `csgo_econ_action_preview` query string. Parse accepts
// either the full steam:// URI or just its trailing parameter blob, with the
// tokens run together or separated by spaces.
func Parse(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Link{}, ErrInvalidLink
	}

	params, err := extractParams(raw)
	if err != nil {
		return Link{}, err
	}

	link := Link{
		S: params["S"],
		A: params["A"],
		D: params["D"],
		M: params["M"],
	}
	if link.S == "" {
		link.S = "0"
	}
	if link.M == "" {
		link.M = "0"
	}

	return link, link.Validate()
}

// Validate checks the invariant that exactly one of S or M is the non-"0"
// owner, and that A and D are always present.
func (l Link) Validate() error {
	if l.A == "" || l.D == "" {
		return ErrInvalidLink
	}
	ownerSet := l.S != "0" && l.S != ""
	marketSet := l.M != "0" && l.M != ""
	if ownerSet == marketSet {
		// either both unset or both set -- exactly one must be the owner.
		return ErrInvalidLink
	}
	return nil
}

// extractParams pulls the `<Letter><value>` tokens out of a steam:// URI's
// trailing path segment, or a bare token blob (space-separated or run
// together).
func extractParams(raw string) (map[string]string, error) {
	if u, err := url.Parse(raw); err == nil && u.Scheme == "steam" {
		idx := strings.LastIndex(raw, "+csgo_econ_action_preview")
		if idx == -1 {
			return nil, ErrInvalidLink
		}
		raw = raw[idx+len("+csgo_econ_action_preview"):]
	}

	raw = strings.ReplaceAll(raw, "%20", " ")
	fields := strings.Fields(raw)
	params := make(map[string]string, 4)
	for _, f := range fields {
		// A run of digits ends a token when another letter follows it.
		for len(f) >= 2 {
			n := 1
			for n < len(f) && f[n] >= '0' && f[n] <= '9' {
				n++
			}
			if n == 1 || n == len(f) {
				n = len(f)
			}
			switch key := strings.ToUpper(f[:1]); key {
			case "S", "A", "D", "M":
				params[key] = f[1:n]
			}
			f = f[n:]
		}
	}
	if len(params) == 0 {
		return nil, ErrInvalidLink
	}
	return params, nil
}
