package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arond1/jotter/internal/storage"
	pkgconfig "github.com/arond1/jotter/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg = AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}

	cfg = AuthConfig{Mode: "magic", Token: "x"}
	if cfg.Validate() == nil {
		t.Error("invalid mode should fail validation")
	}
}

func TestNotebooksConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     NotebooksConfig
		wantErr bool
	}{
		{"defaults", NotebooksConfig{Path: "./nb", DefaultNote: "note.md"}, false},
		{"no path", NotebooksConfig{DefaultNote: "note.md"}, true},
		{"nested default note", NotebooksConfig{Path: "./nb", DefaultNote: "a/note.md"}, true},
		{"reserved default note", NotebooksConfig{Path: "./nb", DefaultNote: "notebook.json"}, true},
		{"traversal default note", NotebooksConfig{Path: "./nb", DefaultNote: ".."}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	c := NotebooksConfig{Compress: true}
	if c.Codec() != storage.CodecDeflate {
		t.Error("compress should select the deflate codec")
	}
}

func TestFullConfig_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if cfg.Validate() == nil {
		t.Fatal("full config validate should catch auth error")
	}

	cfg = NewDefaultConfig()
	cfg.Events.TreeThrottle = -time.Second
	if cfg.Validate() == nil {
		t.Fatal("negative throttle should fail")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("JOTTER_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  http:
    port: 9090
notebooks:
  path: /srv/notebooks
  compress: true
auth:
  mode: token
  token: ${JOTTER_TEST_TOKEN}
events:
  tree_throttle: 500ms
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(path, cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Notebooks.Path != "/srv/notebooks" || !cfg.Notebooks.Compress {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Notebooks.DefaultNote != "note.md" {
		t.Errorf("default note should keep its default, got %q", cfg.Notebooks.DefaultNote)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q, env not expanded", cfg.Auth.Token)
	}
	if cfg.Events.TreeThrottle != 500*time.Millisecond {
		t.Errorf("throttle = %v", cfg.Events.TreeThrottle)
	}
}

func TestLoadMissingConfigKeepsDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Notebooks.Path != "./notebooks" || cfg.App.HTTP.Port != 8080 {
		t.Errorf("defaults changed: %+v", cfg)
	}
	if err := pkgconfig.Load(filepath.Join(t.TempDir(), "absent.yaml"), cfg); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
