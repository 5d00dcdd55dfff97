// Package mocks provides gomock implementations of the BFF ports.
//
// Mocks are generated with go.uber.org/mock (gomock). To regenerate after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	backend := mocks.NewMockBackendClient(ctrl)
//	backend.EXPECT().Call(gomock.Any(), gomock.Any()).Return(&ports.BackendResponse{OK: true}, nil)
package mocks

// Generate mock for BackendClient interface from internal/ports package.
// This creates MockBackendClient with methods for all BackendClient interface methods:
// Call
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=backend_client_mock.go github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports BackendClient

// Generate mock for AuditRecorder interface from internal/ports package.
// This creates MockAuditRecorder with methods for all AuditRecorder interface methods:
// Record
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_recorder_mock.go github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/ports AuditRecorder
