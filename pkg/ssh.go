//go:build !windows

package pkg

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"
)

const ServerIdleTimeout = 5 * time.Minute

// SSHServer lets anyone with an ssh client play: every session runs chessterm
// in a pseudo-terminal, connected back to this authority.
type SSHServer struct {
	*ssh.Server
	chessterm string
	target    string
}

func NewSSHServer(cfg *Config, target string) (*SSHServer, error) {
	s := &SSHServer{chessterm: cfg.Chessterm, target: target}
	s.Server = &ssh.Server{
		Addr:        cfg.ListenSSH,
		IdleTimeout: ServerIdleTimeout,
		Handler:     s.handle,
		PtyCallback: func(ctx ssh.Context, pty ssh.Pty) bool {
			return true
		},
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			return true
		},
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			return true
		},
		KeyboardInteractiveHandler: func(ctx ssh.Context, challenger gossh.KeyboardInteractiveChallenge) bool {
			return true
		},
	}
	// Without a configured key gliderlabs/ssh generates an ephemeral one.
	if cfg.SSHHostKey != "" {
		if err := s.SetOption(ssh.HostKeyFile(cfg.SSHHostKey)); err != nil {
			return nil, fmt.Errorf("load ssh host key: %w", err)
		}
	}
	return s, nil
}

func (s *SSHServer) ListenAndServe() error {
	Log.Infow("listening", "ssh", s.Addr)
	err := s.Server.ListenAndServe()
	if err == ssh.ErrServerClosed {
		return nil
	}
	return err
}

func (s *SSHServer) handle(sess ssh.Session) {
	ptyReq, winCh, isPty := sess.Pty()
	if !isPty {
		io.WriteString(sess, "non-interactive terminals are not supported\n")
		sess.Exit(1)
		return
	}

	cmdCtx, cancelCmd := context.WithCancel(sess.Context())
	defer cancelCmd()

	cmd := exec.CommandContext(cmdCtx, s.chessterm, "--server", s.target, "--log", "")
	cmd.Env = append(sess.Environ(), fmt.Sprintf("TERM=%s", ptyReq.Term))

	f, err := pty.Start(cmd)
	if err != nil {
		io.WriteString(sess, fmt.Sprintf("failed to initialize pseudo-terminal: %s\n", err))
		sess.Exit(1)
		return
	}
	defer f.Close()

	Log.Infow("ssh session started", "user", sess.User(), "remote", sess.RemoteAddr().String())

	go func() {
		for win := range winCh {
			pty.Setsize(f, &pty.Winsize{Rows: uint16(win.Height), Cols: uint16(win.Width)})
		}
	}()

	go func() {
		io.Copy(f, sess)
	}()
	io.Copy(sess, f)

	cmd.Wait()
	Log.Infow("ssh session ended", "user", sess.User())
}
