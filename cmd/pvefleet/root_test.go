package main

import (
	"testing"

	"github.com/pvefleet/pvefleet/internal/config"
	"github.com/pvefleet/pvefleet/internal/ssh"
)

func TestBuildPooledRunnerUsesConnectionPool(t *testing.T) {
	opts := &rootOpts{}
	hosts := []config.Host{
		{Name: "pve-01", Hostname: "pve-01.example.com", User: "root", Port: 22},
		{Name: "pve-02", Hostname: "pve-02.example.com", User: "root", Port: 22},
	}

	runner, cleanup, names := opts.buildPooledRunner(hosts)
	defer cleanup()

	if _, ok := runner.(*ssh.Pool); !ok {
		t.Fatalf("expected a *ssh.Pool runner, got %T", runner)
	}
	if len(names) != 2 || names[0] != "pve-01" || names[1] != "pve-02" {
		t.Errorf("names = %v, want [pve-01 pve-02]", names)
	}
}

func TestSSHConfigsCarriesHostOverrides(t *testing.T) {
	opts := &rootOpts{insecure: true}
	hosts := []config.Host{
		{Name: "admin@pve-01", Hostname: "pve-01", User: "admin", Port: 2222, ProxyJump: "bastion"},
	}

	baseConf, hostConfs, names := opts.sshConfigs(hosts)

	if !baseConf.AcceptUnknownHosts {
		t.Error("AcceptUnknownHosts should follow --insecure")
	}
	if names[0] != "admin@pve-01" {
		t.Errorf("names[0] = %q, want the display name", names[0])
	}
	hc := hostConfs["admin@pve-01"]
	if hc.Hostname != "pve-01" || hc.User != "admin" || hc.Port != 2222 || hc.ProxyJump != "bastion" {
		t.Errorf("unexpected host config: %+v", hc)
	}
}
