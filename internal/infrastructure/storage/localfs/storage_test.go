package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, "doc-1_合同.txt", strings.NewReader("甲方：张三")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := store.Open(ctx, "doc-1_合同.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "甲方：张三" {
		t.Fatalf("body = %q", body)
	}
}

func TestRejectsTraversalAndMissing(t *testing.T) {
	store, _ := New(t.TempDir())
	ctx := context.Background()
	if err := store.Save(ctx, "../escape", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.Open(ctx, "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
