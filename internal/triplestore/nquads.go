// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package triplestore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ErrInvalidResults is returned for payloads that are not a SPARQL JSON
// result set with results.bindings.
var ErrInvalidResults = errors.New("invalid SPARQL results")

// payloadPrefixLen is how much of a bad payload is quoted in errors.
const payloadPrefixLen = 200

// Term types of the SPARQL 1.1 JSON results format.
const (
	TermURI          = "uri"
	TermLiteral      = "literal"
	TermTypedLiteral = "typed-literal"
	TermBNode        = "bnode"
)

// Term is one RDF term of a binding.
type Term struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

// Binding maps variable names to terms.
type Binding map[string]Term

// Results is a SPARQL SELECT JSON response.
type Results struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results *struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// Stats reports what a conversion kept and dropped.
type Stats struct {
	Bindings   int `json:"bindings"`
	Statements int `json:"statements"`
	Skipped    int `json:"skipped"`
}

// EscapeLiteral escapes a literal lexical form. The replacement order is
// fixed: backslash first so later escapes are not doubled.
func EscapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\t", `\t`)
	return s
}

// FormatTerm renders a term in N-Quads syntax.
func FormatTerm(t Term) string {
	switch t.Type {
	case TermURI:
		return "<" + t.Value + ">"
	case TermBNode:
		return "_:" + t.Value
	default:
		lit := `"` + EscapeLiteral(t.Value) + `"`
		switch {
		case t.Lang != "":
			return lit + "@" + t.Lang
		case t.Datatype != "":
			return lit + "^^<" + t.Datatype + ">"
		default:
			return lit
		}
	}
}

// FormatQuad renders one binding, reporting false when a term is missing.
func FormatQuad(b Binding) (string, bool) {
	s, okS := b["s"]
	p, okP := b["p"]
	o, okO := b["o"]
	g, okG := b["g"]
	if !okS || !okP || !okO || !okG {
		return "", false
	}
	return FormatTerm(s) + " " + FormatTerm(p) + " " + FormatTerm(o) + " " + FormatTerm(g) + " .", true
}

// ParseResults decodes a SPARQL JSON result set.
func ParseResults(data []byte) (*Results, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidResults)
	}
	var res Results
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %v; payload starts %q", ErrInvalidResults, err, prefix(data))
	}
	if res.Results == nil || res.Results.Bindings == nil {
		return nil, fmt.Errorf("%w: missing results.bindings; payload starts %q", ErrInvalidResults, prefix(data))
	}
	return &res, nil
}

// ConvertToNQuads turns a SPARQL JSON result set into N-Quads text.
func ConvertToNQuads(data []byte) (string, Stats, error) {
	res, err := ParseResults(data)
	if err != nil {
		return "", Stats{}, err
	}

	var sb strings.Builder
	stats := Stats{Bindings: len(res.Results.Bindings)}
	for _, b := range res.Results.Bindings {
		line, ok := FormatQuad(b)
		if !ok {
			stats.Skipped++
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		stats.Statements++
	}
	return sb.String(), stats, nil
}

func prefix(data []byte) string {
	if len(data) > payloadPrefixLen {
		return string(data[:payloadPrefixLen])
	}
	return string(data)
}
