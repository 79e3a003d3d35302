// Package reply generates the agent's customer-facing responses. A Generator
// produces the draft text from the context gathered by the plan's read steps.
// Two implementations exist: OpenAIGenerator calls the chat-completions API,
// TemplateGenerator is the deterministic fallback used when no API key is
// configured or the API call fails. Both append a "Sources used" section
// citing the knowledge-base files that informed the reply.
package reply

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-support-agent/internal/agent"
	"github.com/tbourn/go-support-agent/internal/domain"
	"github.com/tbourn/go-support-agent/internal/kb"
)

// Request carries everything a Generator needs to draft a reply.
type Request struct {
	CustomerName    string
	CustomerCompany string
	Message         string
	Intent          domain.Intent
	Context         *agent.RunContext
}

// Generator drafts a reply for a classified customer message.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TemplateGenerator produces a deterministic reply without any external
// calls. The reply greets the customer by name, references the top
// knowledge-base topic when one matched, and cites sources.
type TemplateGenerator struct{}

// Generate implements Generator. It never fails.
func (TemplateGenerator) Generate(_ context.Context, req Request) (string, error) {
	results := kbResults(req.Context)

	var b strings.Builder
	if len(results) > 0 {
		topic := results[0].Heading
		if topic == "" {
			topic = "our documentation"
		}
		fmt.Fprintf(&b, "Hi %s! Based on our help docs about %s, here is what I found:\n\n", req.CustomerName, topic)
		for _, r := range results {
			if s := strings.TrimSpace(r.Snippet); s != "" {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		}
	} else {
		fmt.Fprintf(&b, "Thank you for reaching out, %s! I'd be happy to help you with that.", req.CustomerName)
		switch req.Intent {
		case domain.IntentEscalationRequest:
			b.WriteString(" I'm escalating your request to a human agent right away.")
		case domain.IntentBugReport, domain.IntentTechnicalSupport, domain.IntentIntegrationHelp, domain.IntentBillingIssue:
			b.WriteString(" I've prepared a support ticket so our team can follow up.")
		}
	}

	return strings.TrimSpace(b.String()) + FormatSources(req.Context), nil
}

func kbResults(rc *agent.RunContext) []kb.Result {
	if rc == nil || rc.KBResults == nil {
		return nil
	}
	results, _ := rc.KBResults["results"].([]kb.Result)
	return results
}

// FormatSources renders the trailing "Sources used" section from the KB
// results in the run context, deduplicated by source file and capped at
// three entries. It returns "" when no KB result is present.
func FormatSources(rc *agent.RunContext) string {
	results := kbResults(rc)
	if len(results) == 0 {
		return ""
	}

	seen := make(map[string]struct{})
	var sources []kb.Result
	for _, r := range results {
		if r.SourceFile == "" {
			continue
		}
		if _, dup := seen[r.SourceFile]; dup {
			continue
		}
		seen[r.SourceFile] = struct{}{}
		sources = append(sources, r)
	}
	if len(sources) == 0 {
		return ""
	}
	if len(sources) > 3 {
		sources = sources[:3]
	}

	var b strings.Builder
	b.WriteString("\n\n---\n**Sources used:**\n")
	for _, s := range sources {
		b.WriteString("- " + s.SourceFile)
		if s.Heading != "" {
			b.WriteString(" (" + s.Heading + ")")
		}
		b.WriteString("\n")
	}
	return b.String()
}
