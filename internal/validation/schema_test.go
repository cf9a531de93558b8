package validation

import (
	"errors"
	"testing"

	"github.com/goliatone/go-pagecms/internal/domain"
)

var feedSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url":   map[string]any{"type": "string", "minLength": 1},
		"title": map[string]any{"type": "string"},
		"limit": map[string]any{"type": "integer", "minimum": 1},
	},
	"required": []any{"url"},
}

func TestValidatePayloadAcceptsGoIntegers(t *testing.T) {
	if err := ValidatePayload(feedSchema, map[string]any{"url": "https://example.com/feed", "limit": 5}); err != nil {
		t.Fatalf("expected payload to validate, got %v", err)
	}
}

func TestValidatePayloadReportsIssues(t *testing.T) {
	err := ValidatePayload(feedSchema, map[string]any{"limit": 0})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !errors.Is(err, ErrSchemaValidation) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation kind, got %v", err)
	}
	issues := Issues(err)
	if len(issues) < 2 {
		t.Fatalf("expected at least two issues (url missing, limit minimum), got %v", issues)
	}
}

func TestCompileRejectsInvalidSchema(t *testing.T) {
	_, err := Compile(map[string]any{"type": 12})
	if !errors.Is(err, ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}

func TestPayloadValidationErrorMessage(t *testing.T) {
	err := &PayloadValidationError{Issues: []ValidationIssue{{Location: "/url", Message: "missing"}}}
	if got := err.Error(); got != "#/url: missing" {
		t.Fatalf("unexpected message %q", got)
	}
}
