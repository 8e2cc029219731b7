package services_test

import (
	"context"
	"testing"

	"overdub/internal/services"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-42")
	id, ok := services.RunIDFromContext(ctx)
	if !ok || id != "run-42" {
		t.Fatalf("RunIDFromContext = %q, %v; want run-42, true", id, ok)
	}
}

func TestRunIDEmptyIsNoop(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id on untouched context")
	}
}

func TestStageRoundTrip(t *testing.T) {
	ctx := services.WithStage(context.Background(), "generate")
	stage, ok := services.StageFromContext(ctx)
	if !ok || stage != "generate" {
		t.Fatalf("StageFromContext = %q, %v; want generate, true", stage, ok)
	}
}
