package main

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pvefleet/pvefleet/internal/config"
	"github.com/pvefleet/pvefleet/internal/executor"
	"github.com/pvefleet/pvefleet/internal/logging"
	"github.com/pvefleet/pvefleet/internal/ssh"
)

// rootOpts holds flags shared by the fleet subcommands.
type rootOpts struct {
	configPath  string
	group       string
	hostFile    string
	concurrency int
	timeout     time.Duration
	insecure    bool
	sequential  bool
	sudo        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	root := &cobra.Command{
		Use:           "pvefleet",
		Short:         "Proxmox VE fleet operations: SSH fan-out, batch VM actions, hardware checks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.config/pvefleet/config.yaml)")
	pf.StringVarP(&opts.group, "group", "g", "", "host group from the config file")
	pf.StringVarP(&opts.hostFile, "hosts", "f", "", "newline-delimited host list file")
	pf.IntVar(&opts.concurrency, "concurrency", 0, "max parallel hosts (default from config)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "per-host timeout (default from config)")
	pf.BoolVar(&opts.insecure, "insecure", false, "skip SSH host key verification")
	pf.BoolVar(&opts.sequential, "seq", false, "process hosts strictly one at a time, in list order")
	pf.BoolVar(&opts.sudo, "sudo", false, "run remote commands under sudo")

	root.AddCommand(
		newExecCmd(opts),
		newCopyCmd(opts),
		newVMCmd(opts),
		newBenchCmd(opts),
		newBurninCmd(opts),
		newLDAPCmd(),
		newDiscoverCmd(),
	)

	return root
}

// loadConfig loads the YAML config from the flag path or the default.
func (o *rootOpts) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	return config.LoadDefault()
}

// resolveHosts merges the host file, group, and CLI arguments into the
// resolved host list, preserving file order.
func (o *rootOpts) resolveHosts(cfg *config.Config, cliHosts []string) ([]config.Host, error) {
	extra := cliHosts
	if o.hostFile != "" {
		fileHosts, err := config.LoadHostFile(o.hostFile)
		if err != nil {
			return nil, err
		}
		extra = append(fileHosts, cliHosts...)
	}
	return config.ResolveHosts(cfg, o.group, extra)
}

// sshConfigs builds the base SSH client config, the per-host overrides, and
// the ordered host name list.
func (o *rootOpts) sshConfigs(hosts []config.Host) (ssh.ClientConfig, map[string]ssh.HostConfig, []string) {
	baseConf := ssh.ClientConfig{
		AcceptUnknownHosts: o.insecure,
		PasswordCallback:   promptPassword,
	}

	names := make([]string, 0, len(hosts))
	hostConfs := make(map[string]ssh.HostConfig, len(hosts))
	for _, h := range hosts {
		names = append(names, h.Name)
		hostConfs[h.Name] = ssh.HostConfig{
			Hostname:     h.Hostname,
			User:         h.User,
			Port:         h.Port,
			IdentityFile: h.IdentityFile,
			ProxyJump:    h.ProxyJump,
		}
	}
	return baseConf, hostConfs, names
}

// buildRunner constructs the one-shot runner.
func (o *rootOpts) buildRunner(hosts []config.Host) (*ssh.SSHRunner, []string) {
	baseConf, hostConfs, names := o.sshConfigs(hosts)

	if o.sudo {
		sudoPassword, err := promptSecret("sudo password (empty for NOPASSWD): ")
		if err == nil && sudoPassword != "" {
			return ssh.NewRunnerWithSudo(baseConf, hostConfs, sudoPassword), names
		}
		return ssh.NewRunnerWithSudo(baseConf, hostConfs, ""), names
	}
	return ssh.NewRunner(baseConf, hostConfs), names
}

// buildPooledRunner returns a runner that caches one connection per host for
// the lifetime of the run, for commands that hit every host repeatedly.
// Sudo runs fall back to the one-shot runner (the PTY sudo path is not
// pooled) with a no-op cleanup.
func (o *rootOpts) buildPooledRunner(hosts []config.Host) (executor.Runner, func() error, []string) {
	if o.sudo {
		runner, names := o.buildRunner(hosts)
		return runner, func() error { return nil }, names
	}
	baseConf, hostConfs, names := o.sshConfigs(hosts)
	pool := ssh.NewPool(baseConf, hostConfs)
	return pool, pool.Close, names
}

// buildExecutor applies flag/config precedence for concurrency and timeout.
func (o *rootOpts) buildExecutor(cfg *config.Config, runner executor.Runner) *executor.Executor {
	concurrency := cfg.Defaults.Concurrency
	if o.concurrency > 0 {
		concurrency = o.concurrency
	}
	if o.sequential {
		concurrency = 1
	}
	timeout := cfg.Defaults.Timeout.Duration
	if o.timeout > 0 {
		timeout = o.timeout
	}
	return executor.New(runner,
		executor.WithConcurrency(concurrency),
		executor.WithTimeout(timeout),
	)
}

// promptPassword is the SSH auth fallback when agent and keys fail.
func promptPassword(host string) (string, error) {
	return promptSecret(fmt.Sprintf("password for %s: ", host))
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

var log = logging.Get()
