package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestDetailOf(t *testing.T) {
	wrapped := fmt.Errorf("step: %w", NewCatalogError(ErrCodeNoResults, "no listings", nil))

	tests := []struct {
		name string
		err  error
		want ErrorDetail
	}{
		{"catalog error", NewCatalogError(ErrCodeSession, "browser gone", errors.New("eof")), ErrorDetail{ErrCodeSession, "browser gone"}},
		{"wrapped catalog error", wrapped, ErrorDetail{ErrCodeNoResults, "no listings"}},
		{"plain error", errors.New("disk full"), ErrorDetail{ErrCodeInternal, "disk full"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetailOf(tt.err); *got != tt.want {
				t.Errorf("DetailOf() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestIsSoftIsFatal(t *testing.T) {
	if !IsSoft(NewCatalogError(ErrCodeIntercepted, "x", nil)) {
		t.Error("intercepted click should be soft")
	}
	if IsSoft(NewCatalogError(ErrCodeSession, "x", nil)) || !IsFatal(NewCatalogError(ErrCodeSession, "x", nil)) {
		t.Error("session failure should be fatal, not soft")
	}
	if IsSoft(errors.New("x")) || IsFatal(errors.New("x")) {
		t.Error("plain errors are neither soft nor fatal")
	}
}
