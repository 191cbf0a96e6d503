// Package mocks provides mock implementations for testing the session
// service.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the port interfaces. The mocks are generated using go:generate directives
// and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	source := mocks.NewMockCredentialSource(ctrl)
//	source.EXPECT().Verify(gomock.Any(), "a@example.com", "pw").Return(principal, true, nil)
package mocks

// Generate mock for CredentialSource interface from internal/ports.
// This creates MockCredentialSource with the Verify method.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_source_mock.go github.com/gestia/sessiond/internal/ports CredentialSource
