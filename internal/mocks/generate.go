// Package mocks provides mock implementations for testing the session store.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the AuthAPI port. The mocks are generated using go:generate directives and
// provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockAPI := mocks.NewMockAuthAPI(ctrl)
//	mockAPI.EXPECT().Refresh(gomock.Any(), gomock.Any()).Return(nil)
package mocks

// Generate mock for AuthAPI interface from internal/ports package.
// This creates MockAuthAPI with methods for all AuthAPI interface methods:
// Login, AdminLogin, Logout, RequestMagicLink, VerifyMagicLink, Refresh, Validate
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_api_mock.go github.com/brightline/portal-sessions/internal/ports AuthAPI
