package server

import (
	"cors-gateway/pkg/logger"

	"github.com/stretchr/testify/mock"
)

// mockLogger records calls so tests can assert on what was logged
type mockLogger struct {
	mock.Mock
}

func newMockLogger() *mockLogger {
	m := &mockLogger{}
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Info", mock.Anything, mock.Anything).Maybe()
	m.On("Warn", mock.Anything, mock.Anything).Maybe()
	m.On("Error", mock.Anything, mock.Anything).Maybe()
	return m
}

func (m *mockLogger) Debug(msg string, fields ...logger.Field) { m.Called(msg, fields) }
func (m *mockLogger) Info(msg string, fields ...logger.Field)  { m.Called(msg, fields) }
func (m *mockLogger) Warn(msg string, fields ...logger.Field)  { m.Called(msg, fields) }
func (m *mockLogger) Error(msg string, fields ...logger.Field) { m.Called(msg, fields) }
func (m *mockLogger) Fatal(msg string, fields ...logger.Field) { m.Called(msg, fields) }
func (m *mockLogger) With(fields ...logger.Field) logger.Logger {
	return m
}
