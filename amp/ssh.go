package amp

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"
)

// SSHSession runs a remote command over SSH and broadcasts into its stdin or
// decodes its stdout. The remote command is typically a soft modem, for
// example "minimodem --tx 300" to send or "minimodem --rx 300" to listen.
type SSHSession struct {
	*Session
	sshSession *ssh.Session
	stdin      io.WriteCloser
	stdout     io.Reader
	stderr     io.Reader
}

// NewSSHSession creates an AMP session from an SSH session.
func NewSSHSession(sshSession *ssh.Session, opts ...Option) (*SSHSession, error) {
	// Get pipes
	stdin, err := sshSession.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	stderr, err := sshSession.StderrPipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}

	session := NewSession(stdout, stdin, opts...)

	return &SSHSession{
		Session:    session,
		sshSession: sshSession,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
	}, nil
}

// run starts command, runs fn against the session and waits for the remote
// side. A listening command does not exit on its own, so with stop set it is
// signalled once fn returns.
func (s *SSHSession) run(ctx context.Context, command string, stop bool, fn func() error) error {
	if ctx == nil {
		ctx = s.ctx
	}
	s.logger.Info("SSH: starting %q", command)
	if err := s.sshSession.Start(command); err != nil {
		return err
	}

	// Wait for command to finish in background
	done := make(chan error, 1)
	go func() {
		done <- s.sshSession.Wait()
	}()

	err := fn()

	// Close stdin to signal completion
	s.stdin.Close()
	if stop {
		if sigErr := s.sshSession.Signal(ssh.SIGTERM); sigErr != nil {
			s.logger.Debug("SSH: signal: %v", sigErr)
			s.sshSession.Close()
		}
	}

	select {
	case err2 := <-done:
		if err == nil && !stop {
			err = err2
		}
	case <-ctx.Done():
		return NewError(ErrCancelled, ctx.Err().Error())
	}

	return err
}

// SendFiles starts command and broadcasts files into its stdin.
func (s *SSHSession) SendFiles(ctx context.Context, command string, files []FileInfo) error {
	return s.run(ctx, command, false, func() error {
		return s.Session.SendFiles(ctx, files)
	})
}

// SendAmp starts command and writes one rendering of a into its stdin.
func (s *SSHSession) SendAmp(ctx context.Context, command string, a *Amp, ro RenderOptions) error {
	return s.run(ctx, command, false, func() error {
		return s.Session.SendAmp(ctx, a, ro)
	})
}

// ReceiveFiles starts command and decodes its stdout until maxFiles files
// arrive (0 = until the command exits).
func (s *SSHSession) ReceiveFiles(ctx context.Context, command string, maxFiles int) error {
	return s.run(ctx, command, maxFiles > 0, func() error {
		return s.Session.ReceiveFiles(ctx, maxFiles)
	})
}

// Close closes the SSH session and cleans up resources.
func (s *SSHSession) Close() error {
	var errs []error

	if s.stdin != nil {
		if err := s.stdin.Close(); err != nil && err != io.EOF {
			errs = append(errs, err)
		}
	}

	if s.sshSession != nil {
		if err := s.sshSession.Close(); err != nil && err != io.EOF {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0] // Return first error
	}

	return nil
}

// Stderr returns the stderr reader for monitoring remote command output.
func (s *SSHSession) Stderr() io.Reader {
	return s.stderr
}
