package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pvefleet/pvefleet/internal/config"
	"github.com/pvefleet/pvefleet/internal/pve"
	"github.com/pvefleet/pvefleet/internal/ssh"
	"github.com/pvefleet/pvefleet/internal/tunnel"
)

func newVMCmd(opts *rootOpts) *cobra.Command {
	var (
		idFile string
		via    string
	)

	cmd := &cobra.Command{
		Use:   "vm [vmids...] <action>",
		Short: "Run one action against a list of VMs/containers via the Proxmox API",
		Long: `Resolves each VMID's hosting node and type with a single cluster
resource query, then dispatches the action per guest. Actions:

  set key=value [key=value ...]   apply config changes
  start|stop|shutdown|suspend|resume|reset
  reboot
  migrate <target-node>

Anything else is posted verbatim under the guest's API path as a
best-effort raw call. Per-ID failures are logged and processing
continues; the exit status reflects any failure.

API credentials come from PVEFLEET_API_URL, PVEFLEET_TOKEN_ID, and
PVEFLEET_TOKEN_SECRET. With --via, the API is reached through an SSH
tunnel to the given bastion or node.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actionStr := args[len(args)-1]
			vmids, err := collectVMIDs(idFile, args[:len(args)-1])
			if err != nil {
				return err
			}
			if len(vmids) == 0 {
				return fmt.Errorf("no VMIDs given: pass IDs as arguments or use --ids")
			}

			pveCfg, err := config.LoadPVE()
			if err != nil {
				return err
			}

			if via != "" {
				restore, err := openAPITunnel(cmd, opts, via, pveCfg)
				if err != nil {
					return err
				}
				defer restore()
			}

			client, err := pve.NewClient(pveCfg)
			if err != nil {
				return err
			}

			batch := pve.NewBatch(client, log)
			result, err := batch.Run(cmd.Context(), vmids, actionStr)
			if err != nil {
				return err
			}

			failed := result.FailedCount()
			fmt.Printf("%d succeeded, %d failed\n", len(result.Results)-failed, failed)
			if failed > 0 {
				return fmt.Errorf("%d action(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&idFile, "ids", "i", "", "newline-delimited VMID list file")
	cmd.Flags().StringVar(&via, "via", "", "SSH host to tunnel the API connection through")
	return cmd
}

// collectVMIDs merges the ID file with CLI-provided numeric IDs, file first.
func collectVMIDs(idFile string, args []string) ([]int, error) {
	var vmids []int
	if idFile != "" {
		fileIDs, err := pve.LoadVMIDFile(idFile)
		if err != nil {
			return nil, err
		}
		vmids = append(vmids, fileIDs...)
	}
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid VMID %q", a)
		}
		vmids = append(vmids, id)
	}
	return vmids, nil
}

// openAPITunnel forwards the API endpoint through an SSH connection to via
// and rewrites the API URL to the local end. The returned func closes the
// tunnel.
func openAPITunnel(cmd *cobra.Command, opts *rootOpts, via string, pveCfg *config.PVE) (func(), error) {
	apiURL, err := url.Parse(pveCfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parse PVEFLEET_API_URL: %w", err)
	}
	remotePort := 8006
	if p := apiURL.Port(); p != "" {
		remotePort, _ = strconv.Atoi(p)
	}

	conf := ssh.ClientConfig{
		AcceptUnknownHosts: opts.insecure,
		PasswordCallback:   promptPassword,
	}
	client, err := ssh.Dial(cmd.Context(), via, conf)
	if err != nil {
		return nil, fmt.Errorf("dial tunnel host %s: %w", via, err)
	}

	mgr := tunnel.NewManager()
	tun, err := mgr.Open(cmd.Context(), client.SSHClient(), via, tunnel.Forward{
		RemoteHost: apiURL.Hostname(),
		RemotePort: remotePort,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open tunnel via %s: %w", via, err)
	}

	log.WithField("local", tun.LocalAddr).Info("API tunnel established")
	// TLS certificates are issued for the node name, not 127.0.0.1.
	pveCfg.InsecureTLS = true
	pveCfg.APIURL = apiURL.Scheme + "://" + tun.LocalAddr + apiURL.Path

	return func() {
		tun.Close()
		client.Close()
	}, nil
}
