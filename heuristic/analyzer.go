// Package heuristic explains a verdict with curated keywords and the
// sender's domain. It never influences the vote.
package heuristic

import (
	"fmt"
	"strings"
)

// MaxReasons caps the number of reasons returned by Analyze.
const MaxReasons = 6

// pointsPerWord is added to a score for every distinct word found.
const pointsPerWord = 10

var (
	trustedDomains    = []string{"company", "corp", "gmail", "outlook"}
	suspiciousDomains = []string{"lottery", "prize", "winner"}

	spamIndicators = []string{"win", "free", "click", "urgent", "prize", "money", "offer"}
	hamIndicators  = []string{"meeting", "project", "thanks", "please", "team", "review"}

	spamScoreWords = append(append([]string(nil), spamIndicators...), "limited", "act now")
	hamScoreWords  = append(append([]string(nil), hamIndicators...), "attached", "follow up")
)

// Analysis is the heuristic output merged into an ensemble result.
type Analysis struct {
	Reasons   []string `json:"reasons"`
	SpamScore int      `json:"spam_score"`
	HamScore  int      `json:"ham_score"`
}

// Analyzer scans messages for indicator keywords. The zero value is ready to use.
type Analyzer struct{}

// Analyze matches substrings of the lower-cased "email content" text.
// The domain reason, when present, is always first.
func (Analyzer) Analyze(email, content string) Analysis {
	text := strings.ToLower(email + " " + content)
	reasons := make([]string, 0, MaxReasons)

	domain := Domain(email)
	lowerDomain := strings.ToLower(domain)
	switch {
	case containsAny(lowerDomain, trustedDomains):
		reasons = append(reasons, fmt.Sprintf("Recognized domain: %s", domain))
	case containsAny(lowerDomain, suspiciousDomains):
		reasons = append(reasons, fmt.Sprintf("Suspicious domain: %s", domain))
	}

	for _, w := range spamIndicators {
		if len(reasons) >= MaxReasons {
			break
		}
		if strings.Contains(text, w) {
			reasons = append(reasons, fmt.Sprintf("Spam keyword: %q", w))
		}
	}
	for _, w := range hamIndicators {
		if len(reasons) >= MaxReasons {
			break
		}
		if strings.Contains(text, w) {
			reasons = append(reasons, fmt.Sprintf("Legitimate keyword: %q", w))
		}
	}

	return Analysis{
		Reasons:   reasons,
		SpamScore: score(text, spamScoreWords),
		HamScore:  score(text, hamScoreWords),
	}
}

// Domain returns the part of the address after the first "@" up to any
// following "@", or "" when the address has none.
func Domain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func containsAny(s string, subs []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func score(text string, words []string) int {
	total := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			total += pointsPerWord
		}
	}
	return total
}
