package sshadmin

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/evilham/prometheus-adlermanager/internal/sites"
)

// Session is one authenticated admin shell, bound to the requesting user's
// accessible sites. It corresponds to the Python original's
// AdlerManagerSSHProtocol instance.
type Session struct {
	Username string
	Sites    *sites.Manager
	term     *term.Terminal
}

func (s *Server) serveSession(username string, channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	sess := &Session{Username: username, Sites: s.Sites}
	var execCommand string
	ready := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for req := range requests {
			switch req.Type {
			case "pty-req", "window-change":
				req.Reply(true, nil)
			case "shell":
				req.Reply(true, nil)
				close(ready)
			case "exec":
				var payload struct{ Command string }
				ssh.Unmarshal(req.Payload, &payload)
				execCommand = payload.Command
				req.Reply(true, nil)
				close(ready)
			default:
				req.Reply(false, nil)
			}
		}
	}()

	select {
	case <-ready:
	case <-ctx.Done():
		return
	}

	sess.term = term.NewTerminal(channel, "")

	if execCommand != "" {
		sess.runLine(execCommand)
		return
	}

	sess.term.SetPrompt(">>> ")
	fmt.Fprint(sess.term, motd())
	fmt.Fprintln(sess.term)

	for {
		line, err := sess.term.ReadLine()
		if err != nil {
			return
		}
		if sess.runLine(line) == errExit {
			return
		}
	}
}

// sentinel returned by runLine to signal the shell should close, mirroring
// the Python original's exitWithCode(0) for do_exit/EOF.
var errExit = fmt.Errorf("exit")

// runLine parses and dispatches one command line, matching
// SSHSimpleProtocol.runLine/runCommand: unknown commands and command panics
// are reported to the terminal rather than killing the session.
func (s *Session) runLine(line string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(s.term, "Error: %v\n", r)
		}
	}()
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(s.term, "No such command: %s\n", name)
		return nil
	}
	if err := cmd.Run(s, args); err != nil {
		if err == errExit {
			return errExit
		}
		fmt.Fprintf(s.term, "Error: %s\n", err)
	}
	return nil
}

func motd() string {
	return "prometheus-adlermanager admin shell. Type help for a command list."
}
