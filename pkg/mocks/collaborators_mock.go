package mocks

import (
	"context"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockEmailSender is a mock implementation of protocol.EmailSender interface.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, accountID, to, subject, body string) (string, error) {
	args := m.Called(ctx, accountID, to, subject, body)

	return args.String(0), args.Error(1)
}

// MockContentGenerator is a mock implementation of protocol.ContentGenerator interface.
type MockContentGenerator struct {
	mock.Mock
}

func (m *MockContentGenerator) Generate(ctx context.Context, request protocol.GenerateRequest) (string, error) {
	args := m.Called(ctx, request)

	return args.String(0), args.Error(1)
}

// MockEmailAnalyzer is a mock implementation of protocol.EmailAnalyzer interface.
type MockEmailAnalyzer struct {
	mock.Mock
}

func (m *MockEmailAnalyzer) Analyze(ctx context.Context, emailID string) (*models.EmailAnalysis, error) {
	args := m.Called(ctx, emailID)

	analysis, _ := args.Get(0).(*models.EmailAnalysis)

	return analysis, args.Error(1)
}
