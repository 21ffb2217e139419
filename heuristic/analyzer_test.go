package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		content   string
		reasons   []string
		spamScore int
		hamScore  int
	}{
		{
			name:    "lottery sender",
			email:   "promo@lottery-winner.com",
			content: "Congratulations! You've won $1,000,000! Click here to claim your prize now!",
			reasons: []string{
				"Suspicious domain: lottery-winner.com",
				`Spam keyword: "win"`,
				`Spam keyword: "click"`,
				`Spam keyword: "prize"`,
			},
			spamScore: 30,
		},
		{
			name:      "colleague",
			email:     "alice@company.com",
			content:   "Can you send me the project timeline when you get a chance?",
			reasons:   []string{"Recognized domain: company.com", `Legitimate keyword: "project"`},
			spamScore: 0,
			hamScore:  10,
		},
		{
			name:    "empty content",
			email:   "someone@example.org",
			content: "",
			reasons: []string{},
		},
		{
			name:    "domain matched case-insensitively",
			email:   "Promo@LOTTERY.com",
			content: "hello",
			reasons: []string{"Suspicious domain: LOTTERY.com"},
		},
		{
			name:      "no at sign",
			email:     "not-an-address",
			content:   "Act now, limited offer",
			reasons:   []string{`Spam keyword: "offer"`},
			spamScore: 30,
		},
		{
			name:     "score-only words",
			email:    "bob@example.org",
			content:  "I attached the notes, will follow up",
			reasons:  []string{},
			hamScore: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyzer{}.Analyze(tt.email, tt.content)
			assert.Equal(t, tt.reasons, got.Reasons)
			assert.Equal(t, tt.spamScore, got.SpamScore, "spam score")
			assert.Equal(t, tt.hamScore, got.HamScore, "ham score")
		})
	}
}

func TestAnalyzeCapsReasons(t *testing.T) {
	got := Analyzer{}.Analyze("x@gmail.com", "win free click urgent prize money offer meeting project thanks")
	assert.Len(t, got.Reasons, MaxReasons)
	assert.Equal(t, "Recognized domain: gmail.com", got.Reasons[0])
	assert.Equal(t, `Spam keyword: "prize"`, got.Reasons[5])
	// scores are not capped
	assert.Equal(t, 70, got.SpamScore)
	assert.Equal(t, 30, got.HamScore)
}

func TestAnalyzeFullSpamSentence(t *testing.T) {
	got := Analyzer{}.Analyze("promo@lottery-winner.com",
		"WINNER!! As a valued customer you have been selected to receive $1000! Click to claim your free prize money offer")
	assert.Contains(t, got.Reasons[0], "lottery")
	assert.GreaterOrEqual(t, len(got.Reasons)-1, 3)
	assert.GreaterOrEqual(t, got.SpamScore, 20)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "example.com", Domain("a@example.com"))
	assert.Equal(t, "b", Domain("a@b@c"))
	assert.Equal(t, "", Domain("plain"))
	assert.Equal(t, "", Domain("trailing@"))
}
