package explain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const systemInstruction = `You explain machine learning results to people who do not write code.
Use at most five sentences. Mention the best model, how good it is in plain terms,
and which inputs mattered most. Never invent numbers that are not in the prompt.`

// GeminiConfig configures the Gemini explainer.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini asks a Gemini model for the narrative.
type Gemini struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// NewGemini creates the client. An empty API key is an error; callers
// should use Fallback alone in that case.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: genai.Ptr[int32](400),
	}
	return &Gemini{client: client, model: model, timeout: cfg.Timeout}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Explain(ctx context.Context, s Summary) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(Prompt(s)))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from gemini")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini returned no text")
	}
	return out, nil
}

// Prompt renders the summary as the user prompt.
func Prompt(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s predicting %q from %d rows (%s validation).\n", s.Task, s.Target, s.RowCount, s.Validation)
	fmt.Fprintf(&b, "Outcome: %s", s.Status)
	if s.BestModel != "" {
		fmt.Fprintf(&b, ", best model %s", s.BestModel)
	}
	b.WriteString(".\n")
	for _, m := range s.Models {
		if m.Error != "" {
			fmt.Fprintf(&b, "- %s failed: %s\n", m.Name, m.Error)
			continue
		}
		keys := make([]string, 0, len(m.Metrics))
		for k := range m.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%.3f", k, m.Metrics[k])
		}
		fmt.Fprintf(&b, "- %s: %s", m.Name, strings.Join(parts, ", "))
		if len(m.TopFeatures) > 0 {
			feats := make([]string, len(m.TopFeatures))
			for i, f := range m.TopFeatures {
				feats[i] = fmt.Sprintf("%s %.1f%%", f.Name, f.Weight)
			}
			fmt.Fprintf(&b, "; top inputs: %s", strings.Join(feats, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
