package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/receipt-verifier/internal/imaging/imagingtest"
)

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	ctx := newCommandContext(&globalFlags{})
	defer ctx.close()
	root := newRootCommand(ctx)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", db, "--org", "acme", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeReceipt(t *testing.T, path string, seed int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, imagingtest.PNG(t, imagingtest.Receipt(seed, 320, 480)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSubmitShowReview(t *testing.T) {
	t.Setenv("EXTRACT_PROVIDER", "none")
	t.Setenv("DB_URL", "")
	dir := t.TempDir()
	db := filepath.Join(dir, "records.db")
	img := filepath.Join(dir, "receipt.png")
	writeReceipt(t, img, 5)

	out, err := run(t, db, "submit", img, "--json", "--actor", "worker-7")
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	var summary struct {
		RecordID string `json:"record_id"`
		Decision string `json:"decision"`
		Status   string `json:"status"`
		Version  int    `json:"version"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.Decision != "AUTO_APPROVE" || summary.Version != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	out, err = run(t, db, "show", summary.RecordID)
	if err != nil || !strings.Contains(out, summary.RecordID) || !strings.Contains(out, "AUTO_APPROVED") {
		t.Fatalf("show: %v\n%s", err, out)
	}

	_, err = run(t, db, "review", summary.RecordID, "--actor", "rev-1", "--perm", "review:decide",
		"--outcome", "REJECTED", "--expected-version", "1")
	if err == nil {
		t.Fatal("overriding an automatic approval without review:override must fail")
	}

	out, err = run(t, db, "review", summary.RecordID, "--actor", "adm-1", "--perm", "review:override",
		"--outcome", "rejected", "--notes", "known fake", "--expected-version", "1")
	if err != nil {
		t.Fatalf("review: %v\n%s", err, out)
	}
	if !strings.Contains(out, "AUTO_APPROVED -> REJECTED (version 2)") {
		t.Fatalf("review output = %q", out)
	}

	out, err = run(t, db, "review", summary.RecordID, "--actor", "adm-1", "--perm", "review:override",
		"--outcome", "APPROVED", "--expected-version", "1")
	if err == nil {
		t.Fatalf("stale review accepted: %s", out)
	}

	out, err = run(t, db, "show", summary.RecordID, "--json")
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var rec struct {
		Status  string            `json:"status"`
		Version int               `json:"version"`
		Reviews []json.RawMessage `json:"reviews"`
	}
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Status != "REJECTED" || rec.Version != 2 || len(rec.Reviews) != 1 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestBatchAuditExport(t *testing.T) {
	t.Setenv("EXTRACT_PROVIDER", "none")
	t.Setenv("DB_URL", "")
	dir := t.TempDir()
	db := filepath.Join(dir, "records.db")
	in := filepath.Join(dir, "in")
	writeReceipt(t, filepath.Join(in, "a.png"), 1)
	writeReceipt(t, filepath.Join(in, "nested", "b.png"), 2)
	writeReceipt(t, filepath.Join(in, "copy-of-a.png"), 1)
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, db, "batch", "--dir", in, "--workers", "2")
	if err != nil {
		t.Fatalf("batch: %v\n%s", err, out)
	}
	if !strings.Contains(out, "verified 3, failed 0") {
		t.Fatalf("batch output:\n%s", out)
	}

	out, err = run(t, db, "audit")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "3 records scanned, 1 collisions") || !strings.Contains(out, "CONTENT") {
		t.Fatalf("audit output:\n%s", out)
	}

	xlsx := filepath.Join(dir, "out.xlsx")
	if _, err := run(t, db, "export", "--out", xlsx); err != nil {
		t.Fatalf("export: %v", err)
	}
	if st, err := os.Stat(xlsx); err != nil || st.Size() == 0 {
		t.Fatalf("export file: %v", err)
	}

	if out, err := run(t, db, "migrate"); err != nil || !strings.Contains(out, "version 1") {
		t.Fatalf("migrate: %v %s", err, out)
	}
}

func TestOrgRequired(t *testing.T) {
	t.Setenv("RV_ORG", "")
	ctx := newCommandContext(&globalFlags{})
	root := newRootCommand(ctx)
	root.SetArgs([]string{"audit"})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--org") {
		t.Fatalf("err = %v", err)
	}
}
