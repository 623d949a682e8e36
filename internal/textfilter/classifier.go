// Package textfilter is the lexical bad-content detector feeding the spam
// pipeline. Detection is deny-list driven with obfuscation-tolerant regex
// fallbacks; it is deliberately not a scoring model.
package textfilter

import (
	"regexp"
	"strings"
	"unicode"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Result struct {
	Detected bool
	Term     string
	Language string
	Severity Severity
}

// Obfuscation patterns: repeated and leet-substituted characters around a
// known bad stem. Matched against the raw message, last resort after the
// exact and phrase checks.
var obfuscationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)n+[i1!]+[gq]+[e3]+r+`),
	regexp.MustCompile(`(?i)f+[u*@]+[c*]+k+`),
	regexp.MustCompile(`(?i)b+[i1!]+t+[c*]+h+`),
	regexp.MustCompile(`(?i)[s5]+h+[i1!]+t+`),
	regexp.MustCompile(`(?i)c+[o0]+n+n+[a@4]+r+d+`),
	regexp.MustCompile(`(?i)[s5]+[a@4]+l+[o0]+p+[e3]+`),
	regexp.MustCompile(`(?i)p+[u*]+t+[e3a@4]+`),
	regexp.MustCompile(`(?i)[e3]+n+c+[u*]+l+[e3]+`),
}

type Classifier struct {
	french        map[string]struct{}
	english       map[string]struct{}
	frenchPhrases []string
	engPhrases    []string
	whitelist     []string
}

func NewClassifier() *Classifier {
	c := &Classifier{
		french:        make(map[string]struct{}, len(frenchWords)),
		english:       make(map[string]struct{}, len(englishWords)),
		frenchPhrases: frenchPhrases,
		engPhrases:    englishPhrases,
		whitelist:     whitelistTokens,
	}
	for _, w := range frenchWords {
		c.french[w] = struct{}{}
	}
	for _, w := range englishWords {
		c.english[w] = struct{}{}
	}
	return c
}

// Classify checks the text token by token against the deny lists, then the
// multi-word phrases, then the obfuscation patterns. Empty or unreadable
// input degrades to "not detected", never an error.
func (c *Classifier) Classify(text string) Result {
	if text == "" {
		return Result{}
	}

	normalized := Normalize(text)
	tokens := strings.Fields(normalized)

	for _, token := range tokens {
		if c.isWhitelisted(token) {
			continue
		}
		if _, ok := c.french[token]; ok {
			return c.tokenResult(normalized, token, "fr")
		}
		if _, ok := c.english[token]; ok {
			return c.tokenResult(normalized, token, "en")
		}
	}

	for _, phrase := range c.frenchPhrases {
		if strings.Contains(normalized, phrase) {
			return Result{Detected: true, Term: phrase, Language: "fr", Severity: severityOf(phrase)}
		}
	}
	for _, phrase := range c.engPhrases {
		if strings.Contains(normalized, phrase) {
			return Result{Detected: true, Term: phrase, Language: "en", Severity: severityOf(phrase)}
		}
	}

	for _, pattern := range obfuscationPatterns {
		if match := pattern.FindString(text); match != "" {
			// The raw match may be an obfuscated form of a clean word;
			// re-check the whitelist on its normalized form.
			if c.isWhitelisted(Normalize(match)) {
				continue
			}
			return Result{Detected: true, Term: match, Language: "pattern", Severity: SeverityHigh}
		}
	}

	return Result{}
}

// tokenResult reports a token hit, upgraded to the enclosing listed
// phrase when the message contains one. A phrase carries its own
// severity; the bare stem must not mask it.
func (c *Classifier) tokenResult(normalized, token, lang string) Result {
	phrases := c.engPhrases
	if lang == "fr" {
		phrases = c.frenchPhrases
	}
	for _, phrase := range phrases {
		if strings.Contains(phrase, token) && strings.Contains(normalized, phrase) {
			return Result{Detected: true, Term: phrase, Language: lang, Severity: severityOf(phrase)}
		}
	}
	return Result{Detected: true, Term: token, Language: lang, Severity: severityOf(token)}
}

func (c *Classifier) isWhitelisted(token string) bool {
	for _, w := range c.whitelist {
		if strings.Contains(token, w) {
			return true
		}
	}
	return false
}

// Normalize lowercases, strips punctuation and digits-adjacent symbols,
// and collapses whitespace. Accented letters survive so the French list
// keeps matching.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func severityOf(term string) Severity {
	for _, w := range highSeverityWords {
		if strings.Contains(term, w) {
			return SeverityHigh
		}
	}
	for _, w := range mediumSeverityWords {
		if strings.Contains(term, w) {
			return SeverityMedium
		}
	}
	return SeverityLow
}
