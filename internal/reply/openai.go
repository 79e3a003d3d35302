package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/rs/zerolog/log"
)

const systemPrompt = `You are a friendly and professional customer support agent.
Your goal is to provide helpful, concise, and empathetic responses.
Keep responses brief (2-4 sentences) and actionable.
Always address the customer by name and maintain a warm tone.
If documentation was provided, reference it naturally (e.g., "Based on our help docs...").
Do NOT include a sources section - that will be added automatically.`

// OpenAIGenerator drafts replies via the chat-completions API and falls back
// to TemplateGenerator on any failure, so the send path never errors out on
// the LLM dependency.
type OpenAIGenerator struct {
	client   openai.Client
	model    string
	fallback TemplateGenerator
}

// NewOpenAIGenerator builds a generator for the given credentials. BaseURL
// may be empty for the public endpoint; model may be empty for the default.
func NewOpenAIGenerator(apiKey, model, baseURL string) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Generate implements Generator. API errors and empty completions degrade to
// the deterministic template reply; the error return is always nil.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	text, err := g.complete(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("intent", string(req.Intent)).Msg("reply generation fell back to template")
		return g.fallback.Generate(ctx, req)
	}
	return text + FormatSources(req.Context), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(g.userPrompt(req)),
		},
		Model:               openai.ChatModel(g.model),
		Temperature:         param.NewOpt(0.7),
		MaxCompletionTokens: param.NewOpt(int64(200)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

func (g *OpenAIGenerator) userPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context:\nCustomer: %s\n", req.CustomerName)
	if req.CustomerCompany != "" {
		fmt.Fprintf(&b, "Company: %s\n", req.CustomerCompany)
	}
	fmt.Fprintf(&b, "Intent: %s\n", req.Intent)

	if rc := req.Context; rc != nil {
		if profile := rc.CustomerProfile; profile != nil {
			if since, ok := profile["created_at"].(string); ok && since != "" {
				fmt.Fprintf(&b, "Customer since: %s\n", since)
			}
		}
		if tickets := rc.OpenTickets; tickets != nil {
			if count, ok := tickets["count"].(int); ok && count > 0 {
				fmt.Fprintf(&b, "Open tickets: %d\n", count)
			}
		}
		if results := kbResults(rc); len(results) > 0 {
			b.WriteString("\nRelevant documentation:\n")
			for i, r := range results {
				if i == 3 {
					break
				}
				fmt.Fprintf(&b, "- %s: %s\n", r.Heading, r.Snippet)
			}
		}
	}

	fmt.Fprintf(&b, "\nCustomer message: %s\n\nGenerate a helpful, personalized support reply:", req.Message)
	return b.String()
}
