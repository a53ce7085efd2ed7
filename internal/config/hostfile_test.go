package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeHostFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write host file: %v", err)
	}
	return path
}

func TestLoadHostFile(t *testing.T) {
	path := writeHostFile(t, `pve-01
pve-02

# maintenance window
pve-03
root@pve-04
`)

	hosts, err := LoadHostFile(path)
	if err != nil {
		t.Fatalf("LoadHostFile error: %v", err)
	}

	want := []string{"pve-01", "pve-02", "pve-03", "root@pve-04"}
	if len(hosts) != len(want) {
		t.Fatalf("expected %d hosts, got %d: %v", len(want), len(hosts), hosts)
	}
	// File order must be preserved: each host gets exactly one action in
	// this order downstream.
	for i, w := range want {
		if hosts[i] != w {
			t.Errorf("hosts[%d] = %q, want %q", i, hosts[i], w)
		}
	}
}

func TestLoadHostFileEmpty(t *testing.T) {
	path := writeHostFile(t, "\n# only comments\n\n")
	if _, err := LoadHostFile(path); err == nil {
		t.Error("expected error for host file with no hosts")
	}
}

func TestLoadHostFileMissing(t *testing.T) {
	if _, err := LoadHostFile("/nonexistent/hosts.txt"); err == nil {
		t.Error("expected error for missing host file")
	}
}

func TestBenchDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bench.Ping.Count != 20 {
		t.Errorf("ping count = %d, want 20", cfg.Bench.Ping.Count)
	}
	if cfg.Bench.Disk.MinWriteMBps != 80 {
		t.Errorf("min write = %g, want 80", cfg.Bench.Disk.MinWriteMBps)
	}
	if cfg.Burnin.MemoryPercent != 60 {
		t.Errorf("memory percent = %g, want 60", cfg.Burnin.MemoryPercent)
	}
}

func TestBenchConfigParsing(t *testing.T) {
	cfg := loadFromString(t, `
bench:
  ping:
    count: 5
    max_avg_latency: 1500us
    targets:
      - nic: eno1
        addr: 10.0.0.1
      - addr: 10.0.0.254
  disk:
    paths: [/var/lib/vz]
    file_size_mb: 64
    min_write_mbps: 50
  cpu:
    min_hash_mbps: 100
    duration: 2s
burnin:
  download_url: http://mirror.example.com/big.iso
  download_rate: 100m
  memory_percent: 40
`)

	if cfg.Bench.Ping.Count != 5 {
		t.Errorf("ping count = %d, want 5", cfg.Bench.Ping.Count)
	}
	if len(cfg.Bench.Ping.Targets) != 2 {
		t.Fatalf("expected 2 ping targets, got %d", len(cfg.Bench.Ping.Targets))
	}
	if cfg.Bench.Ping.Targets[0].NIC != "eno1" || cfg.Bench.Ping.Targets[0].Addr != "10.0.0.1" {
		t.Errorf("unexpected first target: %+v", cfg.Bench.Ping.Targets[0])
	}
	if cfg.Bench.Disk.Paths[0] != "/var/lib/vz" {
		t.Errorf("disk path = %q, want /var/lib/vz", cfg.Bench.Disk.Paths[0])
	}
	if cfg.Burnin.DownloadRate != "100m" {
		t.Errorf("download rate = %q, want 100m", cfg.Burnin.DownloadRate)
	}
	if cfg.Burnin.MemoryPercent != 40 {
		t.Errorf("memory percent = %g, want 40", cfg.Burnin.MemoryPercent)
	}
}

func TestValidateBadPingTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bench.Ping.Targets = []PingTarget{{NIC: "eno1"}}

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for ping target without addr")
	}
}

func TestValidateMemoryPercentRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Burnin.MemoryPercent = 99

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for memory_percent above 95")
	}
}

func TestLoadPVEFromEnv(t *testing.T) {
	t.Setenv("PVEFLEET_API_URL", "https://pve1.example.com:8006/api2/json")
	t.Setenv("PVEFLEET_TOKEN_ID", "ops@pam!fleet")
	t.Setenv("PVEFLEET_TOKEN_SECRET", "secret")
	t.Setenv("PVEFLEET_INSECURE_TLS", "true")

	p, err := LoadPVE()
	if err != nil {
		t.Fatalf("LoadPVE error: %v", err)
	}
	if p.APIURL != "https://pve1.example.com:8006/api2/json" {
		t.Errorf("APIURL = %q", p.APIURL)
	}
	if p.TokenID != "ops@pam!fleet" {
		t.Errorf("TokenID = %q", p.TokenID)
	}
	if !p.InsecureTLS {
		t.Error("InsecureTLS should be true")
	}
}
