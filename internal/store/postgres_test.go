package store

import (
	"strings"
	"testing"

	"server/internal/domain"
)

func TestBuildPatchSQLOrdersColumns(t *testing.T) {
	patch := domain.RecordPatch{
		domain.FieldStatus:   domain.StatusFailed,
		domain.FieldErrorLog: "Kling AI error: boom",
	}
	query, args, err := buildPatchSQL("video_requests", "rec1", patch)
	if err != nil {
		t.Fatalf("build patch: %v", err)
	}
	want := "UPDATE video_requests SET error_log = $2, status = $3, updated_at = NOW() WHERE id = $1;"
	if query != want {
		t.Fatalf("query mismatch:\n got %q\nwant %q", query, want)
	}
	if len(args) != 3 || args[0] != "rec1" {
		t.Fatalf("args mismatch: %#v", args)
	}
	if args[1] != "Kling AI error: boom" {
		t.Fatalf("error_log arg mismatch: %#v", args[1])
	}
}

func TestBuildPatchSQLEncodesAttachments(t *testing.T) {
	patch := domain.RecordPatch{
		domain.FieldOutputVideo: []domain.Attachment{{URL: "https://cdn.example.com/v.mp4", Filename: "v.mp4"}},
	}
	_, args, err := buildPatchSQL("video_requests", "rec1", patch)
	if err != nil {
		t.Fatalf("build patch: %v", err)
	}
	encoded, ok := args[1].([]byte)
	if !ok {
		t.Fatalf("expected JSON bytes for output_video, got %T", args[1])
	}
	if !strings.Contains(string(encoded), `"url":"https://cdn.example.com/v.mp4"`) {
		t.Fatalf("encoded attachment mismatch: %s", encoded)
	}
}

func TestBuildPatchSQLRejectsUnknownColumn(t *testing.T) {
	if _, _, err := buildPatchSQL("video_requests", "rec1", domain.RecordPatch{"owner": "x"}); err == nil {
		t.Fatalf("expected error for unknown column")
	}
}

func TestNewPostgresRejectsBadTable(t *testing.T) {
	if _, err := NewPostgres(nil, "video; DROP TABLE x"); err == nil {
		t.Fatalf("expected error for invalid identifier")
	}
}
