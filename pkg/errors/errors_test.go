package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("row lock wait exceeded")
	err := Wrap(CodeTimeout, cause, "acquire balance lock")

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeTimeout {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestAsTraversesChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeInsufficientFunds, "balance 10.00 below total 30.00")
	outer := Wrap(CodeDependency, inner, "checkout transaction")

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("outer code should win: %s", typed.Code())
	}
}

func TestMetadataForCheckoutCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeEmptyCart, http.StatusUnprocessableEntity, false},
		{CodeNoItemsAvailable, http.StatusUnprocessableEntity, false},
		{CodeInsufficientFunds, http.StatusPaymentRequired, false},
		{CodeTimeout, http.StatusServiceUnavailable, true},
	}
	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: unexpected status %d", tc.code, meta.HTTPStatus)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: unexpected retryable %v", tc.code, meta.Retryable)
		}
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	if Retryable(New(CodeInsufficientFunds, "too low")) {
		t.Fatal("business failures must not be retryable")
	}
	if !Retryable(New(CodeTimeout, "lock wait")) {
		t.Fatal("timeouts must be retryable")
	}
	if Retryable(stderrors.New("plain")) {
		t.Fatal("untyped errors are not retryable")
	}
}
