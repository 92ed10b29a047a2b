package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"go.uber.org/multierr"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "Dados inválidos", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "Faça login para continuar"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "Acesso negado"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "Não encontrado"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "Operação em andamento"},
		{code: CodeStateConflict, status: http.StatusConflict, publicMsg: "Etapa indisponível", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "Muitas tentativas, aguarde um momento"},
		{code: CodeTimeout, status: http.StatusGatewayTimeout, publicMsg: "O servidor demorou para responder", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "Erro inesperado", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "Serviço indisponível no momento", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestCodeHelpers(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("timeout"), "backend unavailable")
	wrapped := fmt.Errorf("submit: %w", err)

	if CodeOf(wrapped) != CodeDependency {
		t.Fatalf("expected dependency code, got %s", CodeOf(wrapped))
	}
	if !IsCode(wrapped, CodeDependency) {
		t.Fatalf("IsCode should see through fmt wrapping")
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("dependency errors are retryable")
	}
	if IsRetryable(New(CodeValidation, "bad zip")) {
		t.Fatalf("validation errors are not retryable")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors map to internal")
	}
	if got := Newf(CodeNotFound, "product %s", "p-1").Message(); got != "product p-1" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestDumpCapturesUpstreamAndJoinedErrors(t *testing.T) {
	upstream := &UpstreamError{Service: "backend", Operation: "create_order", Status: 502, Body: "bad gateway"}
	err := Wrap(CodeDependency, upstream, "create order")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if dump.UpstreamStatus != 502 || dump.UpstreamOperation != "create_order" {
		t.Fatalf("upstream fields not captured: %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %v", dump.Chain)
	}
	if dump.Fields()["upstream_body"] != "bad gateway" {
		t.Fatalf("fields missing upstream body: %v", dump.Fields())
	}

	joined := multierr.Combine(stdErrors.New("a"), stdErrors.New("b"))
	if got := Dump(joined).Joined; len(got) != 2 {
		t.Fatalf("expected joined errors, got %v", got)
	}
	if empty := Dump(nil); empty.TopMessage != "" || empty.Chain != nil {
		t.Fatalf("nil error should produce empty dump")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", Wrap(CodeNotFound, stdErrors.New("404"), "produto não encontrado"))
	if !stdErrors.Is(err, New(CodeNotFound, "")) {
		t.Fatalf("expected errors.Is to match on code")
	}
	if stdErrors.Is(err, New(CodeValidation, "")) {
		t.Fatalf("different codes must not match")
	}
}
