package connector

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// Connector dispatches command execution and file transfer to either
// the local machine or a remote host over SSH. Hosts are classified
// once per run; remote reachability is decided by a single bounded
// probe that never prompts for a password.
type Connector struct {
	executor     types.CommandExecutor
	logger       types.Logger
	localMarker  string
	sshUser      string
	probeTimeout time.Duration
}

// New creates a Connector.
//
// Parameters:
//   - executor: the command executor used for every process invocation.
//   - logger: the logger to use for logging.
//   - localMarker: the address treated as the local machine.
//   - sshUser: optional user for remote SSH connections; empty means
//     the current user.
//   - probeTimeout: the connect timeout for the reachability probe.
func New(executor types.CommandExecutor, logger types.Logger,
	localMarker, sshUser string, probeTimeout time.Duration) *Connector {
	return &Connector{
		executor:     executor,
		logger:       logger,
		localMarker:  localMarker,
		sshUser:      sshUser,
		probeTimeout: probeTimeout,
	}
}

// Classify builds the Host for an address. The local marker is local
// and always reachable; every other address is remote and probed once
// with a bounded, batch-mode SSH connection.
func (c *Connector) Classify(ctx context.Context, address string) types.Host {
	if address == c.localMarker {
		return types.Host{Address: address, Kind: types.HostLocal, Reachable: true}
	}
	host := types.Host{Address: address, Kind: types.HostRemote}
	host.Reachable = c.probe(ctx, address)
	return host
}

// probe attempts a no-op SSH command. BatchMode forbids password
// prompts so an unreachable or key-less host fails fast.
func (c *Connector) probe(ctx context.Context, address string) bool {
	args := append(c.sshOptions(), c.sshTarget(address), "true")
	_, stderr, err := c.executor.ExecuteCommand(ctx, "ssh", args, os.Environ())
	if err != nil {
		c.logger.Warn("host probe failed", "host", address, "stderr", stderr, "error", err)
		return false
	}
	return true
}

func (c *Connector) sshOptions() []string {
	seconds := int(c.probeTimeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return []string{
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=" + strconv.Itoa(seconds),
	}
}

func (c *Connector) sshTarget(address string) string {
	if c.sshUser != "" {
		return c.sshUser + "@" + address
	}
	return address
}

// Run executes argv on the host and returns its stdout. Local hosts
// execute directly; remote hosts go through SSH.
func (c *Connector) Run(ctx context.Context, host types.Host, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", fmt.Errorf("no command given for host %s", host.Address)
	}
	var stdout, stderr string
	var err error
	if host.Kind == types.HostLocal {
		stdout, stderr, err = c.executor.ExecuteCommand(ctx, argv[0], argv[1:], os.Environ())
	} else {
		args := append(c.sshOptions(), c.sshTarget(host.Address))
		args = append(args, quoteRemote(argv)...)
		stdout, stderr, err = c.executor.ExecuteCommand(ctx, "ssh", args, os.Environ())
	}
	if err != nil {
		return stdout, fmt.Errorf("command %q failed on host %s: %w\nstderr: %s",
			argv[0], host.Address, err, stderr)
	}
	return stdout, nil
}

// CopyTo places a local file at remotePath on the host. For local
// hosts this is a plain file copy.
func (c *Connector) CopyTo(ctx context.Context, host types.Host, localPath, remotePath string) error {
	if host.Kind == types.HostLocal {
		return copyFile(localPath, remotePath)
	}
	args := append(c.sshOptions(), localPath, c.sshTarget(host.Address)+":"+remotePath)
	_, stderr, err := c.executor.ExecuteCommand(ctx, "scp", args, os.Environ())
	if err != nil {
		return fmt.Errorf("failed to copy %s to host %s: %w\nstderr: %s",
			localPath, host.Address, err, stderr)
	}
	return nil
}

// CopyFrom fetches remotePath from the host into localPath. For local
// hosts this is a plain file copy.
func (c *Connector) CopyFrom(ctx context.Context, host types.Host, remotePath, localPath string) error {
	if host.Kind == types.HostLocal {
		return copyFile(remotePath, localPath)
	}
	args := append(c.sshOptions(), c.sshTarget(host.Address)+":"+remotePath, localPath)
	_, stderr, err := c.executor.ExecuteCommand(ctx, "scp", args, os.Environ())
	if err != nil {
		return fmt.Errorf("failed to copy %s from host %s: %w\nstderr: %s",
			remotePath, host.Address, err, stderr)
	}
	return nil
}

// Remove deletes a file on the host. It is best-effort: failures are
// logged, not returned, so deferred temp-file cleanup never masks the
// error of the step that created the file.
func (c *Connector) Remove(ctx context.Context, host types.Host, path string) {
	if _, err := c.Run(ctx, host, "rm", "-f", path); err != nil {
		c.logger.Warn("failed to remove file", "host", host.Address, "path", path, "error", err)
	}
}

// quoteRemote quotes argv for the remote shell: ssh concatenates its
// command arguments with spaces and re-evaluates them remotely, so
// format strings with pipes or braces must survive that round trip.
func quoteRemote(argv []string) []string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return quoted
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$&|;<>(){}[]*?~#`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}
