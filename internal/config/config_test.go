package config

import (
	"strings"
	"testing"
)

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("github_org_id: MDEyOk9yZ2FuaXphdGlvbjE=\nasana_user_gid: \"120001\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.GitHubOrgID != "MDEyOk9yZ2FuaXphdGlvbjE=" {
		t.Fatalf("org id %q", cfg.GitHubOrgID)
	}
	if cfg.AsanaUserGID != "120001" {
		t.Fatalf("user gid %q", cfg.AsanaUserGID)
	}
	if cfg.Serve.Addr == "" || cfg.Serve.BasePath == "" {
		t.Fatalf("expected serve defaults, got %+v", cfg.Serve)
	}
}

func TestFromYAMLRejectsBadBasePath(t *testing.T) {
	_, err := FromYAML([]byte("serve:\n  base_path: v1\n"))
	if err == nil || !strings.Contains(err.Error(), "base_path") {
		t.Fatalf("expected base_path validation error, got %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir() + "/nope.yml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workspace == "" {
		t.Fatalf("expected default workspace")
	}
}
