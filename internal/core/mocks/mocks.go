package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lorrc/severino-relay/internal/core/domain"
	"github.com/lorrc/severino-relay/internal/core/ports"
)

// MockSessionVerifier is a mock implementation of ports.SessionVerifier
type MockSessionVerifier struct {
	mock.Mock
}

func NewMockSessionVerifier() *MockSessionVerifier {
	return &MockSessionVerifier{}
}

func (m *MockSessionVerifier) Verify(ctx context.Context, cookieHeader string) (*domain.Identity, error) {
	args := m.Called(ctx, cookieHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

// MockEventDeliverer is a mock implementation of ports.EventDeliverer
type MockEventDeliverer struct {
	mock.Mock
}

func NewMockEventDeliverer() *MockEventDeliverer {
	return &MockEventDeliverer{}
}

func (m *MockEventDeliverer) Deliver(room string, frame []byte) ports.DeliveryReport {
	args := m.Called(room, frame)
	return args.Get(0).(ports.DeliveryReport)
}

// MockRelayMetrics is a mock implementation of ports.RelayMetrics
type MockRelayMetrics struct {
	mock.Mock
}

func NewMockRelayMetrics() *MockRelayMetrics {
	return &MockRelayMetrics{}
}

func (m *MockRelayMetrics) HandshakeAccepted() {
	m.Called()
}

func (m *MockRelayMetrics) HandshakeRejected(reason string) {
	m.Called(reason)
}

func (m *MockRelayMetrics) IngressAccepted(kind domain.EventKind, report ports.DeliveryReport) {
	m.Called(kind, report)
}

func (m *MockRelayMetrics) IngressRejected(reason string) {
	m.Called(reason)
}
