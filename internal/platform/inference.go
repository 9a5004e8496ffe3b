package platform

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// Model selection is fixed: feedback analysis always runs on the pro model
// with JSON output forced, general chat on the flash model.
const (
	feedbackModelName = "gemini-1.5-pro"
	chatModelName     = "gemini-1.5-flash"
)

const feedbackSystemPrompt = "You are an expert in ATS (Applicant Tracking Systems) and resume review. " +
	"You analyze a resume against a job posting and rate it honestly; low scores are expected for weak resumes. " +
	"You must respond with a single valid JSON object and nothing else."

// VertexModels holds the pre-configured generative models for the app.
type VertexModels struct {
	Feedback   *genai.GenerativeModel
	Chat       *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexModels creates a client holding both models.
func NewVertexModels(ctx context.Context, projectID, region string) (*VertexModels, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexModels: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	feedbackModel := baseClient.GenerativeModel(feedbackModelName)
	feedbackModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(feedbackSystemPrompt)},
	}
	feedbackModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output so the feedback payload parses deterministically.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}

	chatModel := baseClient.GenerativeModel(chatModelName)

	return &VertexModels{
		Feedback:   feedbackModel,
		Chat:       chatModel,
		baseClient: baseClient,
	}, nil
}

func (m *VertexModels) Close() error {
	if m.baseClient != nil {
		return m.baseClient.Close()
	}
	return nil
}

// AI is the inference capability view of the facade.
type AI struct {
	f *Facade
}

// AIResponse carries the text extracted from a model response.
type AIResponse struct {
	Text string
}

// Chat sends a general-purpose prompt, optionally attaching previously
// uploaded documents by reference.
func (ai *AI) Chat(ctx context.Context, prompt string, attachments ...string) (*AIResponse, error) {
	h, err := ai.f.begin()
	if err != nil {
		return nil, err
	}

	parts := make([]genai.Part, 0, len(attachments)+1)
	for _, ref := range attachments {
		parts = append(parts, genai.FileData{MIMEType: mimeForRef(ref), FileURI: ref})
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := h.AI.Chat.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, ai.f.fail("inference chat", err, true)
	}
	ai.f.succeed()
	return &AIResponse{Text: extractText(resp)}, nil
}

// Feedback performs exactly one inference call combining a reference to a
// previously uploaded document with a textual instruction payload. It does
// not chunk, retry, or stream.
func (ai *AI) Feedback(ctx context.Context, docRef, instructions string) (*AIResponse, error) {
	h, err := ai.f.begin()
	if err != nil {
		return nil, err
	}

	filePart := genai.FileData{MIMEType: mimeForRef(docRef), FileURI: docRef}
	resp, err := h.AI.Feedback.GenerateContent(ctx, filePart, genai.Text(instructions))
	if err != nil {
		return nil, ai.f.fail("inference feedback", err, true)
	}
	ai.f.succeed()
	return &AIResponse{Text: extractText(resp)}, nil
}

// extractText robustly gets the raw text content from a model response: the
// first text part carries the payload, stray markdown fences are stripped.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return ""
	}
	clean := strings.TrimSpace(string(txt))
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func mimeForRef(ref string) string {
	switch {
	case strings.HasSuffix(ref, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(ref, ".md"):
		return "text/markdown"
	case strings.HasSuffix(ref, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
