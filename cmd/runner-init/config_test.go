package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadInitConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runner.yaml")
	data := "runner:\n  workRoot: /data/runs\nisolation:\n  containers:\n    cpp: cpp-unit\n  memoryMB: 256\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DOCKER_PY_CONTAINER", "py-from-env")

	cfg, err := loadInitConfig(path, "")
	if err != nil {
		t.Fatalf("loadInitConfig: %v", err)
	}
	if cfg.hostWorkRoot() != "/data/runs" {
		t.Fatalf("host work root = %s", cfg.hostWorkRoot())
	}
	if cfg.Isolation.MemoryMB != 256 {
		t.Fatalf("memory = %d", cfg.Isolation.MemoryMB)
	}

	specs, err := cfg.languages()
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	got := map[string]string{}
	for _, s := range specs {
		got[s.ID] = s.Container
	}
	if got["cpp"] != "cpp-unit" || got["py"] != "py-from-env" || got["js"] != "boj-mock-node" {
		t.Fatalf("containers = %v", got)
	}
}

func TestHostWorkRootPrefersIsolationSetting(t *testing.T) {
	var cfg initConfig
	cfg.Runner.WorkRoot = "/a"
	cfg.Isolation.HostWorkRoot = "/b"
	if cfg.hostWorkRoot() != "/b" {
		t.Fatalf("host work root = %s", cfg.hostWorkRoot())
	}
}
