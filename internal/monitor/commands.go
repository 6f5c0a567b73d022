package monitor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/C4T-BuT-S4D/vouch/internal/verify"
)

type command struct {
	Name    string
	Args    []string
	Payload string
}

// parseCommand splits "/name@bot arg1 arg2" into its parts. Commands addressed
// to another bot are not ours.
func parseCommand(text, botUsername string) (*command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}

	head, payload, _ := strings.Cut(text, " ")
	name := strings.TrimPrefix(head, "/")
	if before, target, found := strings.Cut(name, "@"); found {
		if !strings.EqualFold(target, botUsername) {
			return nil, false
		}
		name = before
	}
	if name == "" {
		return nil, false
	}

	payload = strings.TrimSpace(payload)
	return &command{
		Name:    strings.ToLower(name),
		Args:    strings.Fields(payload),
		Payload: payload,
	}, true
}

var errUsage = errors.New("bad usage")

func (c *command) memberID() (int64, error) {
	if len(c.Args) == 0 {
		return 0, fmt.Errorf("missing member id: %w", errUsage)
	}
	id, err := strconv.ParseInt(c.Args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid member id %q: %w", c.Args[0], errUsage)
	}
	return id, nil
}

// rest returns the payload after the first n arguments, keeping its spacing.
func (c *command) rest(n int) string {
	s := c.Payload
	for i := 0; i < n && i < len(c.Args); i++ {
		s = strings.TrimSpace(strings.TrimPrefix(s, c.Args[i]))
	}
	return s
}

// manualInput parses "<id> <zid|email> [name...]".
func (c *command) manualInput() (int64, verify.ManualInput, error) {
	id, err := c.memberID()
	if err != nil {
		return 0, verify.ManualInput{}, err
	}
	if len(c.Args) < 2 {
		return 0, verify.ManualInput{}, fmt.Errorf("missing zid or email: %w", errUsage)
	}

	in := verify.ManualInput{Name: c.rest(2)}
	if strings.Contains(c.Args[1], "@") {
		in.Email = c.Args[1]
	} else {
		in.ZID = c.Args[1]
	}
	return id, in, nil
}

type adminCommand struct {
	usage string
	run   func(uc *UpdateContext, m *Monitor, cmd *command) (*verify.Reply, error)
}

var adminCommands = map[string]adminCommand{
	"approve": {
		usage: "/approve <member id>",
		run: func(uc *UpdateContext, m *Monitor, cmd *command) (*verify.Reply, error) {
			id, err := cmd.memberID()
			if err != nil {
				return nil, err
			}
			return m.engine.Approve(uc, uc.Actor(), id)
		},
	},
	"reject": {
		usage: "/reject <member id> <reason>",
		run: func(uc *UpdateContext, m *Monitor, cmd *command) (*verify.Reply, error) {
			id, err := cmd.memberID()
			if err != nil {
				return nil, err
			}
			return m.engine.Reject(uc, uc.Actor(), id, cmd.rest(1))
		},
	},
	"resendid": {
		usage: "/resendid <member id>",
		run: func(uc *UpdateContext, m *Monitor, cmd *command) (*verify.Reply, error) {
			id, err := cmd.memberID()
			if err != nil {
				return nil, err
			}
			return m.engine.ResendID(uc, uc.Actor(), id)
		},
	},
	"pending": {
		usage: "/pending",
		run: func(uc *UpdateContext, m *Monitor, _ *command) (*verify.Reply, error) {
			return m.engine.ListPending(uc, uc.Actor())
		},
	},
	"manual": {
		usage: "/manual <member id> <zid|email> [name]",
		run: func(uc *UpdateContext, m *Monitor, cmd *command) (*verify.Reply, error) {
			id, in, err := cmd.manualInput()
			if err != nil {
				return nil, err
			}
			return m.engine.ManualVerify(uc, uc.Actor(), id, in)
		},
	},
	"unlock": {
		usage: "/unlock <member id>",
		run: func(uc *UpdateContext, m *Monitor, cmd *command) (*verify.Reply, error) {
			id, err := cmd.memberID()
			if err != nil {
				return nil, err
			}
			return m.engine.Unlock(uc, uc.Actor(), id)
		},
	},
}

func adminHelp() string {
	names := make([]string, 0, len(adminCommands))
	for name := range adminCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"Available commands:"}
	for _, name := range names {
		lines = append(lines, adminCommands[name].usage)
	}
	return strings.Join(lines, "\n")
}
