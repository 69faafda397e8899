// Package label turns raw ingredient-label text into normalized
// ingredient/sub-ingredient pairs. Parsing is best-effort and never fails:
// malformed input degrades to the trimmed text as a single ingredient.
package label

import (
	"regexp"
	"strings"
)

// Parsed is one top-level ingredient with its parenthetical breakdown, e.g.
// "SPICES (PAPRIKA, GARLIC)" parses to {Name: "SPICES", Subs: ["PAPRIKA", "GARLIC"]}.
type Parsed struct {
	Name string
	Subs []string
}

// disclaimerPatterns is the catalog of boilerplate phrases removed before
// tokenization. Each is substituted with the empty string, in order. The
// "CONTAINS LESS THAN ... OF:" forms sit ahead of the bare "LESS OF:" and
// "CONTAINS 2%" entries so the specific phrase wins over its fragments.
// Extend the list here; the parser logic below never changes for new entries.
var disclaimerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)CONTAINS LESS THAN [\d% ]*OF:`),
	regexp.MustCompile(`(?is)CONTAINS 2% OR LESS OF:`),
	regexp.MustCompile(`(?is)EXCEPT FOR .*`),
	regexp.MustCompile(`(?is)FOR COLOR`),
	regexp.MustCompile(`(?is)CONTAINS TRACES OF .*`),
	regexp.MustCompile(`(?is)MAY CONTAIN .*`),
	regexp.MustCompile(`(?is)CANADA GRADE .*`),
	regexp.MustCompile(`(?is)SEASONING INGREDIENTS?:`),
	regexp.MustCompile(`(?is)SOLUTION INGREDIENTS?:`),
	regexp.MustCompile(`(?is)CONTAINS:`),
	regexp.MustCompile(`(?is)MADE WITH SMILES`),
	regexp.MustCompile(`(?is)MADE WITH:`),
	regexp.MustCompile(`(?is)LESS OF:`),
	regexp.MustCompile(`(?is)BASTED WITH UP TO 16% ADDED SOLUTION OF`),
	regexp.MustCompile(`(?is)BASTED NTE 16% ADDED SOLUTION OF`),
	regexp.MustCompile(`(?is)5% OR LESS OF THE FOLLOWING:`),
	regexp.MustCompile(`(?is)CONTAINS 2%`),
	regexp.MustCompile(`(?is)BASTED WITH UP TO 16% SOLUTION OF`),
	regexp.MustCompile(`(?is)BREADED WITH`),
	regexp.MustCompile(`(?is)NOT MORE THAN 2% SILICON DIOXIDE ADDED TO PREVENT CAKING`),
	regexp.MustCompile(`(?is)CONTAINING UP TO 15% OF A SOLUTION OF WATER`),
	regexp.MustCompile(`(?is)PREBROWNED IN`),
	regexp.MustCompile(`(?is)CONTAINING UP TO 12% OF A SOLUTION OF WATER`),
	regexp.MustCompile(`(?is)IINGREDIENTS:`),
	regexp.MustCompile(`(?is)CONTAIN UP TO 18% SOLUTION OF WATER`),
	regexp.MustCompile(`(?is)COATING INGREDIENTS:`),
	regexp.MustCompile(`(?is)ADDED AS A PRESERVATIVE`),
	regexp.MustCompile(`(?is)CONTAINS UP TO 7%`),
	regexp.MustCompile(`(?is)MECHANICALLY SEPARATED`),
	regexp.MustCompile(`(?is)ADDS A DIETARILY INSIGNIFICANT AMOUNT OF SATURATED FAT`),
	regexp.MustCompile(`(?is)OF EACH OF THE FOLLOWING:`),
	regexp.MustCompile(`(?is)ADDED TO PROTECT FLAVOR`),
}

// prefixPatterns are stripped from the start of the string only, after
// disclaimer removal.
var prefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^INGREDIENTS?:`),
	regexp.MustCompile(`(?i)^MADE FROM:`),
}

var (
	parenWrapped   = regexp.MustCompile(`^(.*?)\((.*)\)$`)
	bracketWrapped = regexp.MustCompile(`^(.*?)\[(.*)\]$`)
	connectorSplit = regexp.MustCompile(`\s+AND/OR\s+|\s+AND\s+|\s+OR\s+`)
)

// Parse parses raw label text into an ordered list of ingredients with their
// sub-ingredients. Empty input yields nil. Duplicates within one parse are
// preserved; deduplication across source rows is the merge routine's job.
//
// Parenthetical breakdowns are parsed one level deep: in
// "SPICES (PAPRIKA (SMOKED))" the sub-ingredient is the literal
// "PAPRIKA (SMOKED)".
func Parse(raw string) []Parsed {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	s := strings.ToUpper(raw)

	for _, p := range disclaimerPatterns {
		s = p.ReplaceAllString(s, "")
	}
	for _, p := range prefixPatterns {
		s = strings.TrimSpace(p.ReplaceAllString(s, ""))
	}

	// Periods show up as list separators on some labels; asterisks mark
	// footnotes and carry no meaning.
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, ".", ",")

	var result []Parsed
	for _, token := range splitTopLevel(s) {
		result = append(result, parseToken(token)...)
	}

	cleaned := result[:0]
	for _, p := range result {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			continue
		}
		subs := p.Subs[:0]
		for _, sub := range p.Subs {
			if sub = strings.TrimSpace(sub); sub != "" {
				subs = append(subs, sub)
			}
		}
		p.Subs = subs
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return nil
	}
	return cleaned
}

// splitTopLevel splits on commas outside any ()/[] nesting.
func splitTopLevel(text string) []string {
	var tokens []string
	var buf strings.Builder
	level := 0
	for _, r := range text {
		switch {
		case r == '(' || r == '[':
			level++
			buf.WriteRune(r)
		case r == ')' || r == ']':
			level--
			buf.WriteRune(r)
		case r == ',' && level == 0:
			if tok := strings.TrimSpace(buf.String()); tok != "" {
				tokens = append(tokens, tok)
			}
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	if tok := strings.TrimSpace(buf.String()); tok != "" {
		tokens = append(tokens, tok)
	}
	return tokens
}

// parseToken handles one top-level token. A parenthetical or bracket that
// closes the token makes it a parent with sub-ingredients; anything else
// (including unbalanced or mid-token parens) is split on the AND/OR
// connectors into independent ingredients.
func parseToken(token string) []Parsed {
	m := parenWrapped.FindStringSubmatch(token)
	if m == nil {
		m = bracketWrapped.FindStringSubmatch(token)
	}
	if m != nil {
		parent := strings.TrimSpace(m[1])
		inside := strings.TrimSpace(m[2])
		var subs []string
		for _, inner := range splitTopLevel(inside) {
			for _, part := range connectorSplit.Split(inner, -1) {
				if part = strings.TrimSpace(part); part != "" {
					subs = append(subs, part)
				}
			}
		}
		return []Parsed{{Name: parent, Subs: subs}}
	}

	var out []Parsed
	for _, part := range connectorSplit.Split(token, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, Parsed{Name: part})
		}
	}
	return out
}
