// SPDX-License-Identifier: Apache-2.0

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenAIConfig configures the Gemini-backed oracle.
type GenAIConfig struct {
	APIKey      string        `yaml:"api_key"`
	EmbedModel  string        `yaml:"embed_model"`
	ReasonModel string        `yaml:"reason_model"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// DefaultGenAIConfig returns sensible defaults; the API key must be supplied.
func DefaultGenAIConfig() GenAIConfig {
	return GenAIConfig{
		EmbedModel:  "gemini-embedding-001",
		ReasonModel: "gemini-2.0-flash",
		CallTimeout: 60 * time.Second,
	}
}

// GenAI implements SimilarityOracle and ReasoningOracle against the Google
// GenAI API.
type GenAI struct {
	client *genai.Client
	cfg    GenAIConfig
	retry  RetryPolicy
	log    *zap.Logger
}

// NewGenAI creates a Gemini-backed oracle.
func NewGenAI(ctx context.Context, cfg GenAIConfig, log *zap.Logger) (*GenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai oracle: API key is required")
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "gemini-embedding-001"
	}
	if cfg.ReasonModel == "" {
		cfg.ReasonModel = "gemini-2.0-flash"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("genai oracle: create client: %w", err)
	}
	return &GenAI{client: client, cfg: cfg, retry: DefaultRetryPolicy(), log: log}, nil
}

// Embed generates an embedding vector for a single text.
func (g *GenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
		result, err := g.client.Models.EmbedContent(callCtx, g.cfg.EmbedModel, contents,
			&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"})
		if err != nil {
			return &TransportError{Op: "embed", Err: err}
		}
		if len(result.Embeddings) == 0 {
			return &MalformedResponseError{Op: "embed", Err: fmt.Errorf("no embeddings returned")}
		}
		vec = result.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// evaluateEnvelope is the wire shape of an Evaluate response.
type evaluateEnvelope struct {
	Results []ConditionResult `json:"results"`
}

// Evaluate presents one batch of conditions and the full document set to the
// reasoning model and decodes the structured verdicts.
func (g *GenAI) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error) {
	prompt := buildEvaluatePrompt(req)

	var resp EvaluateResponse
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		raw, truncated, usage, err := g.generate(callCtx, prompt)
		if err != nil {
			return err
		}
		var envelope evaluateEnvelope
		if err := decodeResponse("evaluate", raw, truncated, &envelope); err != nil {
			g.log.Warn("evaluate response rejected",
				zap.String("model", g.cfg.ReasonModel),
				zap.Int("raw_length", len(raw)),
				zap.Bool("truncated", truncated),
				zap.Int("input_tokens", usage.InputTokens),
				zap.Int("output_tokens", usage.OutputTokens))
			return err
		}
		resp = EvaluateResponse{Results: envelope.Results, Usage: usage}
		return nil
	})
	if err != nil {
		return EvaluateResponse{}, err
	}
	return resp, nil
}

// Judge requests the four priority dimensions for one deficiency.
func (g *GenAI) Judge(ctx context.Context, req JudgeRequest) (Judgment, error) {
	prompt := buildJudgePrompt(req)

	var judgment Judgment
	err := g.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		defer cancel()

		raw, truncated, _, err := g.generate(callCtx, prompt)
		if err != nil {
			return err
		}
		if err := decodeResponse("judge", raw, truncated, &judgment); err != nil {
			return err
		}
		return validateJudgment(&judgment)
	})
	if err != nil {
		return Judgment{}, err
	}
	return judgment, nil
}

// generate runs one completion call and returns the raw text, whether the
// model stopped on its token limit, and token usage.
func (g *GenAI) generate(ctx context.Context, prompt string) ([]byte, bool, Usage, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	result, err := g.client.Models.GenerateContent(ctx, g.cfg.ReasonModel, contents,
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return nil, false, Usage{}, &TransportError{Op: "generate", Err: err}
	}

	usage := Usage{Model: g.cfg.ReasonModel}
	if result.UsageMetadata != nil {
		usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}
	truncated := false
	if len(result.Candidates) > 0 && result.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		truncated = true
	}
	return []byte(result.Text()), truncated, usage, nil
}

func validateJudgment(j *Judgment) error {
	for name, v := range map[string]float64{
		"severity": j.Severity, "impact": j.Impact, "urgency": j.Urgency, "complexity": j.Complexity,
	} {
		if v < 0 || v > 1 {
			return &MalformedResponseError{Op: "judge", Err: fmt.Errorf("dimension %q out of range: %v", name, v)}
		}
	}
	return nil
}

// buildEvaluatePrompt frames one batch: the condition definitions, then every
// document in the set as one reasoning context, so a requirement may be
// resolved with evidence from any subset of documents.
func buildEvaluatePrompt(req EvaluateRequest) string {
	var b strings.Builder
	b.WriteString("You are an expert loan underwriting compliance checker.\n")
	b.WriteString("Evaluate the loan documents below against each listed condition and determine whether it is satisfied, deficient, or not_applicable.\n\n")
	b.WriteString("CONDITIONS TO CHECK:\n")
	for _, cond := range req.Conditions {
		fmt.Fprintf(&b, "---\nCONDITION ID: %s\nDESCRIPTION: %s\nRELATED DOCUMENTS: %s\nKEY DATA ELEMENTS: %s\n",
			cond.Title, cond.Description,
			strings.Join(cond.DocumentTypes, ", "),
			strings.Join(cond.DataElements, ", "))
	}

	b.WriteString("\nLOAN APPLICATION CONTEXT:\n")
	if req.Documents.LoanProgram != "" {
		fmt.Fprintf(&b, "Loan Program: %s\n", req.Documents.LoanProgram)
	}
	if len(req.Documents.Borrower) > 0 {
		if enc, err := json.Marshal(req.Documents.Borrower); err == nil {
			fmt.Fprintf(&b, "Borrower Information: %s\n", enc)
		}
	}

	b.WriteString("\nDOCUMENTS (treat all of them as one evidence pool; a condition may be satisfied by any document or combination of documents):\n")
	for _, doc := range req.Documents.Documents {
		fmt.Fprintf(&b, "---\nDOCUMENT ID: %s\nCLASSIFICATION: %s\nEXTRACTED DATA:\n", doc.ID, doc.Classification)
		if enc, err := json.MarshalIndent(doc.Fields, "", "  "); err == nil {
			b.Write(enc)
		}
		b.WriteString("\n")
	}

	b.WriteString(`
For each condition:
1. Determine whether its preconditions are met by any document; if not, status is "not_applicable".
2. If applicable, check all requirements across ALL documents together; evidence found in any document counts.
3. Report status "satisfied" or "deficient" with specific field references and evidence.
4. "documents_checked" must list exactly the document classifications you actually consulted.
5. When satisfaction rests on one specific document's field, set "satisfied_by" to that document's id; when it required synthesizing several documents with no single decisive source, leave it null.
6. For deficient conditions include a short imperative "actionable_instruction" (5-10 words, e.g. "Upload signed tax return").

Return ONLY valid JSON:
{"results": [{"condition_id": "...", "status": "satisfied|deficient|not_applicable", "deficiencies": [{"requirement": "...", "issue": "...", "field_checked": "...", "evidence": "..."}], "reasoning": "...", "checked_fields": ["..."], "documents_checked": ["..."], "satisfied_by": null, "actionable_instruction": "..."}]}
`)
	return b.String()
}

// buildJudgePrompt asks for the four independent priority dimensions of one
// deficiency, each in [0, 1] with a short rationale.
func buildJudgePrompt(req JudgeRequest) string {
	var b strings.Builder
	b.WriteString("Evaluate this loan underwriting deficiency for priority scoring.\n\n")
	fmt.Fprintf(&b, "Condition: %s\nStatus: %s\n", req.Result.ConditionID, req.Result.Status)
	if len(req.RelatedDocuments) > 0 {
		fmt.Fprintf(&b, "Related Documents: %s\n", strings.Join(req.RelatedDocuments, ", "))
	}
	fmt.Fprintf(&b, "Detection Confidence: %.2f (0=uncertain, 1=certain)\n\nDEFICIENCIES FOUND:\n", req.DetectionConfidence)
	for i, item := range req.Result.Deficiencies {
		fmt.Fprintf(&b, "%d. Requirement: %s\n   Issue: %s\n   Field: %s\n   Evidence: %s\n",
			i+1, item.Requirement, item.Issue, item.FieldChecked, item.Evidence)
	}
	fmt.Fprintf(&b, "\nREASONING:\n%s\n", req.Result.Reasoning)
	b.WriteString(`
Rate each dimension from 0.0 to 1.0 for the loan underwriting context:
1. SEVERITY: how critical to loan approval (1.0 = deal cannot close, regulatory violation).
2. IMPACT: consequences if not resolved (1.0 = cannot fund loan, investor rejection).
3. URGENCY: time sensitivity (1.0 = immediate blocker).
4. COMPLEXITY: remediation difficulty (1.0 = very difficult, multiple parties).

Return ONLY valid JSON:
{"severity": 0.0, "impact": 0.0, "urgency": 0.0, "complexity": 0.0, "explanation": "1-2 sentences"}
`)
	return b.String()
}
