package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type nameRule struct {
	name    string
	matches func(words []string) bool
}

func anyWord(pattern string) func([]string) bool {
	re := regexp.MustCompile(pattern)
	return func(words []string) bool {
		for _, w := range words {
			if re.MatchString(w) {
				return true
			}
		}
		return false
	}
}

func allOf(preds ...func([]string) bool) func([]string) bool {
	return func(words []string) bool {
		for _, p := range preds {
			if !p(words) {
				return false
			}
		}
		return true
	}
}

// Rules are tried in order; the first match names the segment.
var fallbackNameRules = []nameRule{
	{"VIP Customers", anyWord(`vip|premium|high.*value|expensive|luxury`)},
	{"New Subscribers", allOf(anyWord(`new|recent|fresh|latest`), anyWord(`subscriber|follow`))},
	{"Win-Back Targets", anyWord(`win.*back|return|inactive|dormant`)},
	{"Global Audience", anyWord(`international|global|foreign|overseas`)},
	{"Growth Prospects", anyWord(`potential|prospect|haven.*bought|not.*purchase`)},
	{"Loyal Customers", anyWord(`loyal|long.*term|repeat`)},
	{"Engaged Users", anyWord(`engage|active|frequent`)},
	{"Budget Segment", anyWord(`budget|low.*spend|cheap`)},
	{"Partner Network", anyWord(`affiliate|partner`)},
	{"Digital Buyers", anyWord(`digital|online|course`)},
}

// Words containing any of these fragments are skipped when building a name
// from the description itself.
var fillerWord = regexp.MustCompile(`the|and|for|with|from|that|this`)

// FallbackName derives a segment name from the description without calling
// the model.
func FallbackName(description string) string {
	words := strings.Fields(strings.ToLower(description))
	for _, rule := range fallbackNameRules {
		if rule.matches(words) {
			return rule.name
		}
	}

	var terms []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 3 || fillerWord.MatchString(w) {
			continue
		}
		terms = append(terms, capitalize(w))
		if len(terms) == 2 {
			break
		}
	}
	if len(terms) == 0 {
		return "Custom Segment"
	}
	return strings.Join(terms, " ") + " Segment"
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	return strings.ToUpper(string(r)) + w[size:]
}

var quoteChars = strings.NewReplacer(`'`, "", `"`, "", "“", "", "”", "")

// cleanName strips quotes and code fences from a model-suggested name.
func cleanName(s string) string {
	s = quoteChars.Replace(strings.TrimSpace(s))
	if strings.Contains(s, "```") {
		s = stripCodeFence(s)
		s = strings.ReplaceAll(s, "```", "")
	}
	return strings.TrimSpace(s)
}
