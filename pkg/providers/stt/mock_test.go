package stt

import (
	"context"
	"errors"
	"testing"
)

func TestMockReturnsFixedText(t *testing.T) {
	m := &Mock{Text: "hello world"}
	result, err := m.Transcribe(context.Background(), nil, 16000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "hello world" {
		t.Errorf("expected 'hello world', got %q", result)
	}
	if m.Name() != "mock" {
		t.Errorf("expected name 'mock', got %s", m.Name())
	}
}

func TestMockReturnsConfiguredError(t *testing.T) {
	m := &Mock{Err: errors.New("boom")}
	_, err := m.Transcribe(context.Background(), nil, 16000, "")
	if err == nil {
		t.Fatal("expected error")
	}
}
