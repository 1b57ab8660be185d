package app

import (
	"context"
	"testing"

	"github.com/user/casewatch/internal/config"
	"github.com/user/casewatch/internal/gateway"
)

func TestBuildDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.HTTP.PublicURL = "https://cases.example"

	a, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.Files == nil || a.Blobs == nil {
		t.Fatal("filesystem blob store not selected")
	}
	if a.Location.String() != "Asia/Taipei" {
		t.Errorf("location = %s", a.Location)
	}

	resp := a.Gateway.Handle(context.Background(), gateway.GetRequest())
	if resp.Status != gateway.StatusSuccess {
		t.Fatalf("get failed: %+v", resp)
	}
	resp = a.Gateway.Handle(context.Background(), gateway.LoginRequest("admin", "admin"))
	if resp.Status != gateway.StatusSuccess {
		t.Errorf("default login failed: %+v", resp)
	}
}

func TestBuildRejectsUnknownBlobBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Blob.Backend = "ftp"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error")
	}

	cfg.Blob.Backend = "s3"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatal("expected error for s3 without bucket")
	}
}

func TestRedactDSN(t *testing.T) {
	tests := map[string]string{
		"postgres://app:pw@db:5432/cases": "postgres://app:***@db:5432/cases",
		"sqlite:///var/lib/cases.db":      "sqlite:///var/lib/cases.db",
		"":                                "",
	}
	for in, want := range tests {
		if got := redactDSN(in); got != want {
			t.Errorf("redactDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
