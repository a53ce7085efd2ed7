package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/ssh"
)

// RunCommandWithSudo executes a command under sudo, delivering the password
// over a PTY. The PTY merges stdout and stderr into a single stream, so
// stderr is always empty in the result. Sudo password prompts are stripped
// from the captured output.
func (c *Client) RunCommandWithSudo(ctx context.Context, command, password string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.sshClient.NewSession()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("new session: %w", err)
	}
	defer session.Close()

	// sudo -S reads the password from stdin; a PTY is required by hosts
	// with "Defaults requiretty".
	modes := ssh.TerminalModes{
		ssh.ECHO: 0,
	}
	if err := session.RequestPty("xterm", 80, 40, modes); err != nil {
		return nil, nil, -1, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, nil, -1, fmt.Errorf("stdin pipe: %w", err)
	}

	var outBuf safeBuffer
	session.Stdout = &outBuf
	session.Stderr = io.Discard // PTY merges stderr into stdout

	done := make(chan error, 1)
	go func() {
		done <- session.Run("sudo -S " + command)
	}()

	// Deliver the password once the command is running. Writing immediately
	// is safe: sudo drains stdin before prompting again.
	go func() {
		fmt.Fprintln(stdin, password)
		stdin.Close()
	}()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, nil, -1, ctx.Err()
	case err := <-done:
		out := stripSudoPrompt(outBuf.Bytes())
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return out, nil, exitErr.ExitStatus(), nil
			}
			return out, nil, -1, err
		}
		return out, nil, 0, nil
	}
}

// stripSudoPrompt removes sudo password prompt lines ("[sudo] password
// for ...:" and "Password:") from PTY-captured output.
func stripSudoPrompt(out []byte) []byte {
	lines := bytes.Split(out, []byte("\n"))
	kept := make([][]byte, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(string(line))
		if strings.HasPrefix(trimmed, "[sudo] password for ") && strings.HasSuffix(trimmed, ":") {
			continue
		}
		if trimmed == "Password:" {
			continue
		}
		kept = append(kept, line)
	}
	return bytes.Join(kept, []byte("\n"))
}
