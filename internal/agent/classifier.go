// Package agent contains the deterministic core of the support agent: the
// keyword intent classifier, the static plan builder, and the tool executor
// that records every execution in the audit log.
package agent

import (
	"strings"

	"github.com/tbourn/go-support-agent/internal/domain"
)

// intentBucket pairs an intent with the keywords that trigger it. Buckets are
// checked in order; the first hit wins.
type intentBucket struct {
	intent     domain.Intent
	confidence float64
	keywords   []string
}

var buckets = []intentBucket{
	{domain.IntentPricingInquiry, 0.7, []string{"price", "pricing", "cost", "plan", "subscription", "trial"}},
	{domain.IntentBugReport, 0.7, []string{"bug", "error", "broken", "not working", "crash", "fix"}},
	{domain.IntentIntegrationHelp, 0.7, []string{"integrate", "api", "webhook", "connect", "sync"}},
	{domain.IntentBillingIssue, 0.7, []string{"bill", "invoice", "payment", "charge", "refund"}},
	{domain.IntentFeatureRequest, 0.6, []string{"feature", "request", "add", "would like", "suggestion"}},
	{domain.IntentAccountHelp, 0.7, []string{"account", "password", "login", "profile", "settings"}},
	{domain.IntentTechnicalSupport, 0.6, []string{"help", "support", "issue", "problem"}},
	{domain.IntentEscalationRequest, 0.8, []string{"manager", "escalate", "supervisor", "complaint"}},
}

// Classify maps a message to an intent with a fixed confidence per keyword
// bucket. Matching is case-insensitive substring search, buckets checked in
// declaration order. Unmatched input falls through to general_question/0.5.
// The same input always yields the same result.
func Classify(text string) (domain.Intent, float64) {
	lower := strings.ToLower(text)
	for _, b := range buckets {
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				return b.intent, b.confidence
			}
		}
	}
	return domain.IntentGeneralQuestion, 0.5
}
