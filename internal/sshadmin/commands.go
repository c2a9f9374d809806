package sshadmin

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evilham/prometheus-adlermanager/internal/site"
)

// Command is one admin shell verb, grounded in AdlerManagerSSHProtocol.py's
// do_* methods: a short usage line (do_help with no argument) and a long
// form (do_help <cmd>).
type Command struct {
	Usage string
	Help  string
	Run   func(s *Session, args []string) error
}

var commands map[string]Command

func init() {
	commands = map[string]Command{
		"list_sites": {
			Usage: "list_sites",
			Help:  "List all sites to which you have access.",
			Run:   cmdListSites,
		},
		"get_site_config": {
			Usage: "get_site_config <site>",
			Help:  "Get a site's operator override configuration.",
			Run:   cmdGetSiteConfig,
		},
		"set_site_config": {
			Usage: "set_site_config <site>",
			Help: "Set a site's operator override configuration.\n" +
				"Reads YAML from stdin, terminated by a line containing only '---'.",
			Run: cmdSetSiteConfig,
		},
		"whoami": {
			Usage: "whoami",
			Help:  "Print your username.",
			Run:   cmdWhoami,
		},
		"help": {
			Usage: "help [command]",
			Help:  "Get help on a command, or list all commands.",
			Run:   cmdHelp,
		},
		"clear": {
			Usage: "clear",
			Help:  "Clear the terminal screen.",
			Run:   cmdClear,
		},
		"exit": {
			Usage: "exit",
			Help:  "Exit the session.",
			Run:   cmdExit,
		},
	}
}

func cmdWhoami(s *Session, _ []string) error {
	fmt.Fprintln(s.term, s.Username)
	return nil
}

func cmdExit(_ *Session, _ []string) error {
	return errExit
}

func cmdClear(s *Session, _ []string) error {
	// ANSI "clear screen, home cursor", the terminal.reset() equivalent.
	fmt.Fprint(s.term, "\x1b[2J\x1b[H")
	return nil
}

func cmdHelp(s *Session, args []string) error {
	if len(args) > 0 {
		cmd, ok := commands[args[0]]
		if !ok {
			fmt.Fprintf(s.term, "No such command: %s\n", args[0])
			return nil
		}
		fmt.Fprintf(s.term, "Usage: %s\n%s\n", cmd.Usage, cmd.Help)
		return nil
	}

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(s.term, "Available commands:")
	fmt.Fprintln(s.term)
	for _, name := range names {
		fmt.Fprintln(s.term, name)
	}
	return nil
}

func cmdListSites(s *Session, _ []string) error {
	out := make(map[string]any)
	for _, sm := range s.Sites.UserSites(s.Username) {
		status := sm.Status()
		out[sm.Name()] = map[string]any{
			"config": sm.SiteConfig(),
			"status": map[string]any{
				"value":   int(status),
				"message": status.String(),
			},
			"title": sm.Title(),
		}
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	s.term.Write(data)
	return nil
}

// userSite resolves name against the sites username may access, mirroring
// _get_user_site_manager's access check in the Python original.
func (s *Session) userSite(name string) (*site.Manager, bool) {
	for _, sm := range s.Sites.UserSites(s.Username) {
		if sm.Name() == name {
			return sm, true
		}
	}
	return nil, false
}

func cmdGetSiteConfig(s *Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get_site_config <site>")
	}
	sm, ok := s.userSite(args[0])
	if !ok {
		fmt.Fprintln(s.term, "Warning: requested unknown or unaccessible site")
		return nil
	}
	data, err := yaml.Marshal(sm.SiteConfig())
	if err != nil {
		return err
	}
	s.term.Write(data)
	return nil
}

func cmdSetSiteConfig(s *Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: set_site_config <site>")
	}
	name := args[0]
	if _, ok := s.userSite(name); !ok {
		fmt.Fprintln(s.term, "Warning: requested unknown or unaccessible site")
		return nil
	}

	fmt.Fprintln(s.term, "Finish your YAML input with a line like this:")
	fmt.Fprintln(s.term, "---")

	raw, err := s.readUntilEOM()
	if err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("no data was received")
	}

	var cfg site.Override
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return fmt.Errorf("SiteConfig could not be created from data: %w", err)
	}

	confirmed, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	s.term.Write(confirmed)
	fmt.Fprint(s.term, "Does this look fine? [Y/n] ")
	ans, err := s.term.ReadLine()
	if err != nil {
		return err
	}
	ans = strings.ToUpper(strings.TrimSpace(ans))
	if ans != "Y" && ans != "" {
		fmt.Fprintln(s.term, "Aborting")
		return nil
	}

	sm, _ := s.Sites.Lookup(name)
	if sm == nil {
		return fmt.Errorf("site vanished during edit")
	}
	if err := s.Sites.PersistSiteConfig(sm, cfg); err != nil {
		return fmt.Errorf("persisting site config: %w", err)
	}
	fmt.Fprintln(s.term, "Persisted SiteConfiguration")
	return nil
}

// readUntilEOM reads lines until one equal to "---", the end-of-message
// marker AdlerManagerSSHProtocol.do_set_site_config uses (get_user_input
// eom=b"---"), and returns the joined body.
func (s *Session) readUntilEOM() (string, error) {
	var lines []string
	for {
		line, err := s.term.ReadLine()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "---" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}
