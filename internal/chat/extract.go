package chat

import (
	"strings"
	"unicode"

	"github.com/avylis/leadchat/internal/domain"
)

// Extractor decides whether a user message qualifies as an intake turn and
// pulls best-effort contact fields out of it. Implementations are heuristic
// by contract: a Detect hit means "probably contains contact details", not
// reliable extraction.
type Extractor interface {
	// Detect reports whether the message should trigger intake creation.
	Detect(text string) bool

	// Extract builds an intake record from the message, falling back to
	// placeholder values for anything it cannot find.
	Extract(text string) *domain.Intake
}

// placeholderValue fills intake fields the extractor could not recover.
const placeholderValue = "Unknown"

// KeywordExtractor is the shipped Extractor: it looks for identifying
// keywords plus a phone-like digit run. Its extraction accuracy is untested;
// it exists so the pipeline has a working default until a real extraction
// capability is plugged in.
type KeywordExtractor struct{}

// Detect reports true when the message names the sender and carries
// something phone-shaped.
func (KeywordExtractor) Detect(text string) bool {
	lower := strings.ToLower(text)
	named := strings.Contains(lower, "my name is") ||
		strings.Contains(lower, "name:") ||
		strings.Contains(lower, "i am ")
	contact := strings.Contains(lower, "phone") ||
		strings.Contains(lower, "call me") ||
		longestDigitRun(text) >= 7
	return named && contact
}

// Extract pulls a name and phone number out of the message where it can and
// fills the rest with placeholders. The full message text becomes the stated
// purpose.
func (KeywordExtractor) Extract(text string) *domain.Intake {
	intake := &domain.Intake{
		Name:         placeholderValue,
		Phone:        placeholderValue,
		BusinessType: placeholderValue,
		Location:     placeholderValue,
		Purpose:      text,
	}

	if name := afterKeyword(text, "my name is"); name != "" {
		intake.Name = name
	} else if name := afterKeyword(text, "name:"); name != "" {
		intake.Name = name
	}

	if phone := phoneCandidate(text); phone != "" {
		intake.Phone = phone
	}

	return intake
}

// afterKeyword returns the words following the keyword, up to the next
// sentence boundary or three words, whichever comes first.
func afterKeyword(text, keyword string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, keyword)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(keyword):]
	if cut := strings.IndexAny(rest, ".,;\n"); cut >= 0 {
		rest = rest[:cut]
	}
	words := strings.Fields(rest)
	if len(words) > 3 {
		words = words[:3]
	}
	// Stop on connective words so "my name is Ali and my phone..." yields "Ali".
	for i, w := range words {
		switch strings.ToLower(w) {
		case "and", "my", "the":
			return strings.Join(words[:i], " ")
		}
	}
	return strings.Join(words, " ")
}

// phoneCandidate returns the first digit run of at least 7 characters,
// keeping common separators.
func phoneCandidate(text string) string {
	var run strings.Builder
	best := ""
	flush := func() {
		candidate := strings.TrimFunc(run.String(), func(r rune) bool {
			return !unicode.IsDigit(r)
		})
		if digitCount(candidate) >= 7 && len(best) == 0 {
			best = candidate
		}
		run.Reset()
	}
	for _, r := range text {
		if unicode.IsDigit(r) || r == '+' || r == '-' || (r == ' ' && run.Len() > 0) {
			run.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return best
}

func longestDigitRun(text string) int {
	longest, current := 0, 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		// Separators inside a phone number do not break the run.
		if r != ' ' && r != '-' && r != '+' {
			current = 0
		}
	}
	return longest
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
