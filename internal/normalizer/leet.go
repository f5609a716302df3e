// Package normalizer detects leet-speak usernames and normalizes them for
// checking.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/MrSnakeDoc/usercheck/internal/domain"
)

// ErrEmptyUsername is returned when nothing usable remains after cleaning.
var ErrEmptyUsername = errors.New("username is empty after cleaning")

// MaxUsernameLength bounds cleaned usernames.
const MaxUsernameLength = 30

// Confidence weights
const (
	weightChars    = 0.4
	weightPatterns = 0.3
	weightMix      = 0.3

	mixAlphaNumeric = 0.7
	mixSymbols      = 0.5

	leetRatioThreshold = 0.3
)

// leetChars maps substitution characters back to the letter they stand for.
var leetChars = map[rune]rune{
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't', '8': 'b', '9': 'g',
	'@': 'a', '$': 's', '!': 'i', '|': 'l', '+': 't',
}

// leetSequences are multi-character substitutions, checked before single ones.
var leetSequences = map[string]rune{
	"()": 'o', "[]": 'o', "|3": 'b', "|)": 'd', "|<": 'k', "><": 'x', "|_": 'l', `\/`: 'v',
}

// letterVariants are the most common substitutions per letter, used to
// generate variants.
var letterVariants = map[rune][]string{
	'a': {"4", "@"},
	'b': {"8"},
	'e': {"3"},
	'g': {"9"},
	'i': {"1", "!"},
	'l': {"1"},
	'o': {"0"},
	's': {"5", "$"},
	't': {"7"},
	'0': {"o"}, '1': {"i", "l"}, '3': {"e"}, '4': {"a"}, '5': {"s"}, '7': {"t"}, '8': {"b"}, '9': {"g"},
}

var (
	// basic, elite, hacker, number substitution, word with numbers, symbol separation.
	// Repeated symbols (!!!) are matched by hasRepeatedSymbols, RE2 has no backreferences.
	leetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)[4@][5$][5$]`),
		regexp.MustCompile(`(?i)[|\\/][3€][3€]7`),
		regexp.MustCompile(`(?i)xd|lol`),
		regexp.MustCompile(`\d[^\w\s]+\d`),
		regexp.MustCompile(`\w*\d+\w*`),
		regexp.MustCompile(`\w[^\w\s]+\w`),
	}
	patternCount = len(leetPatterns) + 1

	mixedPattern   = regexp.MustCompile(`[a-zA-Z]+\d+[a-zA-Z]*|\d+[a-zA-Z]+\d*`)
	invalidPattern = regexp.MustCompile(`[^\w\-_.]`)
	nonWordPattern = regexp.MustCompile(`[^a-z0-9_]`)
)

// Processor implements the username normalizer used during pre-processing.
type Processor struct {
	maxVariants int
}

func New() *Processor {
	return &Processor{maxVariants: 3}
}

// Process cleans username and analyzes it for checks on platformHint.
func (p *Processor) Process(username, platformHint string) (domain.UsernameAnalysis, error) {
	cleaned := Clean(username)
	if cleaned == "" {
		return domain.UsernameAnalysis{}, ErrEmptyUsername
	}

	leet := IsLeet(cleaned)
	confidence := Confidence(cleaned)

	return domain.UsernameAnalysis{
		Original:        username,
		Normalized:      Normalize(cleaned, false),
		LeetConfidence:  confidence,
		Variants:        p.platformVariants(cleaned, platformHint, leet),
		Recommendations: recommendations(leet, confidence, platformHint),
	}, nil
}

// Clean trims, folds diacritics, removes unusual characters and bounds the length.
func Clean(username string) string {
	cleaned := strings.TrimSpace(foldDiacritics(username))
	cleaned = invalidPattern.ReplaceAllString(cleaned, "")
	if utf8.RuneCountInString(cleaned) > MaxUsernameLength {
		cleaned = string([]rune(cleaned)[:MaxUsernameLength])
	}
	return cleaned
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// IsLeet reports whether username shows leet-speak patterns.
func IsLeet(username string) bool {
	n := utf8.RuneCountInString(username)
	if n < 2 {
		return false
	}

	if matchedPatterns(username) > 0 {
		return true
	}

	if float64(countLeetChars(username))/float64(n) > leetRatioThreshold {
		return true
	}

	return mixedPattern.MatchString(username)
}

// Confidence scores in [0,1] how likely username uses leet speak.
func Confidence(username string) float64 {
	n := utf8.RuneCountInString(username)
	if n < 2 {
		return 0.0
	}

	charScore := float64(countLeetChars(username)) / float64(n)
	patternScore := min(float64(matchedPatterns(username))/float64(patternCount), 1.0)

	var alpha, digits, symbols int
	for _, r := range username {
		switch {
		case unicode.IsLetter(r):
			alpha++
		case unicode.IsDigit(r):
			digits++
		default:
			symbols++
		}
	}

	mix := 0.0
	switch {
	case alpha > 0 && digits > 0:
		mix = mixAlphaNumeric
	case symbols > 0:
		mix = mixSymbols
	}

	return min(charScore*weightChars+patternScore*weightPatterns+mix*weightMix, 1.0)
}

func countLeetChars(s string) int {
	n := 0
	for _, r := range strings.ToLower(s) {
		if _, ok := leetChars[r]; ok {
			n++
		}
	}
	return n
}

func matchedPatterns(s string) int {
	n := 0
	for _, re := range leetPatterns {
		if re.MatchString(s) {
			n++
		}
	}
	if hasRepeatedSymbols(s) {
		n++
	}
	return n
}

// hasRepeatedSymbols matches three or more identical symbols in a row.
func hasRepeatedSymbols(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if isSymbol(r) && r == prev {
			run++
			if run >= 3 {
				return true
			}
			continue
		}
		prev = r
		run = 1
		if !isSymbol(r) {
			run = 0
		}
	}
	return false
}

func isSymbol(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && !unicode.IsSpace(r)
}

// Normalize maps leet substitutions back to letters. Non-leet usernames
// are only lower-cased. Aggressive mode also drops every character
// outside [a-z0-9_].
func Normalize(username string, aggressive bool) string {
	if !IsLeet(username) {
		return strings.ToLower(username)
	}

	normalized := substitute(strings.ToLower(username))
	normalized = normalizePatterns(normalized)

	if aggressive {
		normalized = nonWordPattern.ReplaceAllString(normalized, "")
		normalized = substitute(normalized)
	}

	return strings.Trim(strings.ToLower(normalized), "_-.")
}

func substitute(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if i+2 <= len(s) {
			if r, ok := leetSequences[s[i:i+2]]; ok {
				b.WriteRune(r)
				i += 2
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if l, ok := leetChars[r]; ok {
			r = l
		}
		b.WriteRune(r)
		i += size
	}
	return b.String()
}

var wordReplacer = strings.NewReplacer("ph", "f", "ck", "k", "qu", "q")

func normalizePatterns(s string) string {
	s = wordReplacer.Replace(s)
	if strings.HasPrefix(s, "ex") {
		s = "x" + s[2:]
	}
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "s"
	}
	return collapseRepeats(s)
}

// collapseRepeats reduces every run of the same character to one.
func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// Variants generates up to limit single-substitution leet variants.
func Variants(username string, limit int) []string {
	if username == "" || limit <= 0 {
		return nil
	}

	lower := []rune(strings.ToLower(username))
	seen := make(map[string]bool)
	out := make([]string, 0, limit)
	for i, r := range lower {
		for _, sub := range letterVariants[r] {
			v := string(lower[:i]) + sub + string(lower[i+1:])
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func (p *Processor) platformVariants(username, platform string, leet bool) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, 8)
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	add(strings.ToLower(username))

	switch platform {
	case "instagram", "tiktok", "twitter":
		add(strings.ToUpper(username))
		add(titleCase(username))
	case "github", "reddit":
		add(strings.ReplaceAll(username, "-", "_"))
		add(strings.ReplaceAll(username, "_", "-"))
	}

	if leet {
		for _, v := range Variants(username, p.maxVariants) {
			add(v)
		}
	}

	return out
}

// titleCase upper-cases the first letter of every letter run.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !prevLetter {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func recommendations(leet bool, confidence float64, platform string) []string {
	var recs []string

	if leet {
		switch {
		case confidence > 0.7:
			recs = append(recs,
				"Check normalized version primarily",
				"Also check common leet variants",
				"Consider aggressive normalization for difficult platforms",
			)
		case confidence > 0.3:
			recs = append(recs,
				"Check both original and normalized versions",
				"Generate and check a few leet variants",
			)
		default:
			recs = append(recs, "Standard checking should be sufficient")
		}
	}

	switch platform {
	case "instagram", "facebook":
		recs = append(recs, "These platforms are strict - use normalized versions")
	case "github", "reddit":
		recs = append(recs, "Tech platforms may accept various leet forms")
	}

	return recs
}
