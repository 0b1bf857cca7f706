package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// AIService holds the Gemini client used by the resume assistant.
type AIService struct {
	Client *genai.Client
}

// NewAIService initializes the Gemini client.
func NewAIService(apiKey string) (*AIService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &AIService{Client: client}, nil
}

// GenerateResponse runs one assistant turn. 'resumeJSON' is the current
// resume document (may be empty for a fresh conversation), 'action'
// selects the cheaper planning mode vs a full drafting turn.
// Returns (response text, total tokens used, error).
func (s *AIService) GenerateResponse(ctx context.Context, userMessage, resumeJSON, action string, modelName string) (string, int, error) {
	// 1. Use the model name passed from the handler (dynamic configuration).
	if modelName == "" {
		modelName = "gemini-1.5-flash" // Fallback default
	}
	model := s.Client.GenerativeModel(modelName)

	// 2. System instructions. The planning action only outlines next steps,
	// which is why it is billed cheaper than a full drafting turn.
	instruction := `You are a resume-writing assistant. Help the user draft and
improve the resume document below. Reply with concrete wording the user can
paste into the resume. Be concise.`
	if action == "plan" {
		instruction = `You are a resume-writing assistant in planning mode. Do not
draft any content; reply only with a short ordered plan of what to improve
next in the resume below.`
	}
	if resumeJSON != "" {
		instruction += "\n\nCurrent resume (JSON):\n" + resumeJSON
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}

	// 3. Execute the turn.
	cs := model.StartChat()
	res, err := cs.SendMessage(ctx, genai.Text(userMessage))
	if err != nil {
		return "", 0, fmt.Errorf("error sending message: %w", err)
	}

	// 4. Count tokens. UsageMetadata sits on the response object.
	totalTokens := 0
	if res.UsageMetadata != nil {
		totalTokens = int(res.UsageMetadata.TotalTokenCount)
	}

	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return "No response.", totalTokens, nil
	}
	return fmt.Sprintf("%v", res.Candidates[0].Content.Parts[0]), totalTokens, nil
}
