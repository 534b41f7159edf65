package dev

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/leadflow/pkg/protocol"
)

var ErrEmptyPrompt = errors.New("prompt is empty")

// TemplateGenerator answers prompts with a deterministic template.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (*TemplateGenerator) Generate(_ context.Context, request protocol.GenerateRequest) (string, error) {
	prompt := strings.TrimSpace(request.Prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	tone := request.Tone
	if tone == "" {
		tone = "professional"
	}

	var content string

	switch strings.ToLower(tone) {
	case "friendly", "casual":
		content = fmt.Sprintf("Hi there!\n\n%s\n\nCheers", prompt)
	default:
		content = fmt.Sprintf("Hello,\n\n%s\n\nBest regards", prompt)
	}

	if strings.EqualFold(request.Length, "short") {
		return prompt, nil
	}

	return content, nil
}
