package pve

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// ActionKind categorizes a parsed action string.
type ActionKind int

const (
	// ActionSet applies config key=value pairs.
	ActionSet ActionKind = iota
	// ActionPower is a power-state transition (start/stop/shutdown/...).
	ActionPower
	// ActionReboot reboots the guest.
	ActionReboot
	// ActionMigrate moves the guest to another node.
	ActionMigrate
	// ActionRaw is the best-effort fallback: the action string is posted
	// as-is under the guest path.
	ActionRaw
)

// Action is a parsed batch action.
type Action struct {
	Kind   ActionKind
	Power  string     // for ActionPower: "start", "stop", ...
	Opts   url.Values // for ActionSet
	Target string     // for ActionMigrate
	Raw    string     // for ActionRaw: subpath under the guest
}

// powerActions are the status transitions the API accepts.
var powerActions = map[string]bool{
	"start":    true,
	"stop":     true,
	"shutdown": true,
	"suspend":  true,
	"resume":   true,
	"reset":    true,
}

// ParseAction parses an action string into an Action. Recognized forms:
//
//	set key=value [key=value ...]
//	start | stop | shutdown | suspend | resume | reset
//	reboot
//	migrate <target-node>
//
// Anything else falls through to ActionRaw, posted verbatim under the
// guest's API path.
func ParseAction(s string) (Action, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return Action{}, fmt.Errorf("empty action")
	}

	switch verb := fields[0]; {
	case verb == "set":
		if len(fields) < 2 {
			return Action{}, fmt.Errorf("set requires at least one key=value pair")
		}
		opts := url.Values{}
		for _, pair := range fields[1:] {
			key, val, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return Action{}, fmt.Errorf("malformed set pair %q, want key=value", pair)
			}
			opts.Set(key, val)
		}
		return Action{Kind: ActionSet, Opts: opts}, nil

	case verb == "reboot":
		return Action{Kind: ActionReboot}, nil

	case verb == "migrate":
		if len(fields) != 2 {
			return Action{}, fmt.Errorf("migrate requires exactly one target node")
		}
		return Action{Kind: ActionMigrate, Target: fields[1]}, nil

	case powerActions[verb]:
		return Action{Kind: ActionPower, Power: verb}, nil

	default:
		return Action{Kind: ActionRaw, Raw: strings.Join(fields, "/")}, nil
	}
}

// IDResult is the outcome of one guest's action.
type IDResult struct {
	VMID int
	Err  error
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Results []IDResult
	// Err collects every per-ID failure. Nil when all IDs succeeded.
	Err error
}

// FailedCount returns the number of IDs whose action failed.
func (b *BatchResult) FailedCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Batch dispatches one action against a list of VMIDs.
type Batch struct {
	client *Client
	log    *logrus.Logger
}

// NewBatch creates a batch runner.
func NewBatch(client *Client, log *logrus.Logger) *Batch {
	return &Batch{client: client, log: log}
}

// Run resolves every VMID's node and type from a single upfront cluster
// resource query, then dispatches the action to each guest in list order.
// Per-ID failures are logged and collected; processing always continues to
// the next ID.
func (b *Batch) Run(ctx context.Context, vmids []int, actionStr string) (*BatchResult, error) {
	action, err := ParseAction(actionStr)
	if err != nil {
		return nil, fmt.Errorf("parse action %q: %w", actionStr, err)
	}

	resources, err := b.client.ClusterResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("query cluster resources: %w", err)
	}

	byID := make(map[int]Resource, len(resources))
	for _, r := range resources {
		if r.Type == "qemu" || r.Type == "lxc" {
			byID[r.VMID] = r
		}
	}

	result := &BatchResult{Results: make([]IDResult, 0, len(vmids))}
	for _, vmid := range vmids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		err := b.runOne(ctx, byID, vmid, action)
		if err != nil {
			b.log.WithField("vmid", vmid).WithError(err).Error("action failed")
			result.Err = multierror.Append(result.Err, fmt.Errorf("vmid %d: %w", vmid, err))
		} else {
			b.log.WithField("vmid", vmid).Info("action ok")
		}
		result.Results = append(result.Results, IDResult{VMID: vmid, Err: err})
	}

	return result, nil
}

func (b *Batch) runOne(ctx context.Context, byID map[int]Resource, vmid int, action Action) error {
	r, ok := byID[vmid]
	if !ok {
		return fmt.Errorf("not found in cluster resources")
	}

	switch action.Kind {
	case ActionSet:
		return b.client.SetConfig(ctx, r, action.Opts)
	case ActionPower:
		return b.client.PowerAction(ctx, r, action.Power)
	case ActionReboot:
		return b.client.Reboot(ctx, r)
	case ActionMigrate:
		return b.client.Migrate(ctx, r, action.Target)
	case ActionRaw:
		_, err := b.client.Call(ctx, http.MethodPost, guestPath(r)+"/"+action.Raw, nil)
		return err
	default:
		return fmt.Errorf("unsupported action kind %d", action.Kind)
	}
}

// LoadVMIDFile reads a newline-delimited VMID list. Blank lines and lines
// starting with # are skipped; file order is preserved.
func LoadVMIDFile(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading VMID file: %w", err)
	}

	var vmids []int
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vmid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid VMID %q", i+1, line)
		}
		vmids = append(vmids, vmid)
	}
	if len(vmids) == 0 {
		return nil, fmt.Errorf("VMID file %s contains no IDs", path)
	}
	return vmids, nil
}
