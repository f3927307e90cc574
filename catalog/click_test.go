package catalog

import (
	"context"
	"reflect"
	"testing"

	"github.com/use-agent/partfit/models"
	"github.com/use-agent/partfit/session"
)

// clickStub answers the three click calls with canned errors.
type clickStub struct {
	session.Session
	errs  [3]error
	calls []string
}

func (s *clickStub) Click(context.Context, session.Ref) error {
	s.calls = append(s.calls, "direct")
	return s.errs[0]
}

func (s *clickStub) ScriptClick(context.Context, session.Ref) error {
	s.calls = append(s.calls, "script")
	return s.errs[1]
}

func (s *clickStub) PointerClick(context.Context, session.Ref) error {
	s.calls = append(s.calls, "pointer")
	return s.errs[2]
}

func TestSafeClick(t *testing.T) {
	fatal := models.NewCatalogError(models.ErrCodeSession, "browser gone", nil)
	stale := models.NewCatalogError(models.ErrCodeStaleReference, "detached", nil)

	tests := []struct {
		name      string
		errs      [3]error
		wantCode  string
		wantCalls []string
	}{
		{"direct works", [3]error{}, "", []string{"direct"}},
		{"script after intercept", [3]error{intercepted()}, "", []string{"direct", "script"}},
		{"third strategy succeeds", [3]error{intercepted(), stale}, "", []string{"direct", "script", "pointer"}},
		{"all fail", [3]error{intercepted(), intercepted(), intercepted()}, models.ErrCodeIntercepted, []string{"direct", "script", "pointer"}},
		{"fatal stops the chain", [3]error{fatal}, models.ErrCodeSession, []string{"direct"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &clickStub{errs: tt.errs}
			err := SafeClick(context.Background(), stub, session.Select("#go").At(0))

			if got := models.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (err = %v)", got, tt.wantCode, err)
			}
			if tt.wantCode == "" && err != nil {
				t.Errorf("SafeClick() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(stub.calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", stub.calls, tt.wantCalls)
			}
		})
	}
}

func TestSafeClick_ExhaustionIsSoft(t *testing.T) {
	stub := &clickStub{errs: [3]error{intercepted(), intercepted(), intercepted()}}
	err := SafeClick(context.Background(), stub, session.Select("#go").At(0))
	if !models.IsSoft(err) || models.IsFatal(err) {
		t.Errorf("exhausted SafeClick should be a soft failure, got %v", err)
	}
}
