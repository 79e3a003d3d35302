package agent

import (
	"testing"

	"github.com/tbourn/go-support-agent/internal/domain"
)

func TestClassify_KeywordBuckets(t *testing.T) {
	cases := []struct {
		text       string
		intent     domain.Intent
		confidence float64
	}{
		{"How much does the Pro plan cost?", domain.IntentPricingInquiry, 0.7},
		{"Do you offer a student discount for the Pro plan?", domain.IntentPricingInquiry, 0.7},
		{"The dashboard is broken, charts crash on load", domain.IntentBugReport, 0.7},
		{"I'm having trouble integrating your API, getting 401 errors", domain.IntentBugReport, 0.7},
		{"How do I connect the webhook to my CRM?", domain.IntentIntegrationHelp, 0.7},
		{"My invoice shows a double charge, I need a refund", domain.IntentBillingIssue, 0.7},
		{"It would be great if you could export reports as CSV", domain.IntentFeatureRequest, 0.6},
		{"I forgot my password and cannot log into my profile", domain.IntentAccountHelp, 0.7},
		{"I have an issue and need some guidance", domain.IntentTechnicalSupport, 0.6},
		{"Let me speak with your supervisor immediately", domain.IntentEscalationRequest, 0.8},
		{"What is your favorite color?", domain.IntentGeneralQuestion, 0.5},
		{"", domain.IntentGeneralQuestion, 0.5},
	}

	for _, tc := range cases {
		intent, conf := Classify(tc.text)
		if intent != tc.intent || conf != tc.confidence {
			t.Errorf("Classify(%q) = %s/%.2f, want %s/%.2f", tc.text, intent, conf, tc.intent, tc.confidence)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		intent, conf := Classify("Why was my card charged twice?")
		if intent != domain.IntentBillingIssue || conf != 0.7 {
			t.Fatalf("iteration %d drifted: %s/%.2f", i, intent, conf)
		}
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	a, _ := Classify("PRICING question")
	b, _ := Classify("pricing question")
	if a != b || a != domain.IntentPricingInquiry {
		t.Errorf("case sensitivity: %s vs %s", a, b)
	}
}
