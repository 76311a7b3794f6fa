package sim

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/timespeed/go/internal/timespeed/config"
	"github.com/mcdev12/timespeed/go/internal/timespeed/orchestrator"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
)

// CommandKind names a console command.
type CommandKind string

const (
	CommandPress    CommandKind = "press"
	CommandWarp     CommandKind = "warp"
	CommandEvent    CommandKind = "event"
	CommandMenu     CommandKind = "menu"
	CommandTyping   CommandKind = "typing"
	CommandFestival CommandKind = "festival"
	CommandTime     CommandKind = "time"
	CommandStatus   CommandKind = "status"
	CommandVote     CommandKind = "vote"
)

// Command is one console line, e.g. "press shift OemPeriod" or "warp Town".
type Command struct {
	Kind CommandKind
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(string(c.Kind) + " " + strings.Join(c.Args, " "))
}

// ParseCommand parses one console line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	cmd := Command{Kind: CommandKind(strings.ToLower(fields[0])), Args: fields[1:]}

	switch cmd.Kind {
	case CommandPress, CommandWarp:
		if len(cmd.Args) == 0 {
			return Command{}, fmt.Errorf("%w: %s needs an argument", ErrBadArgument, cmd.Kind)
		}
	case CommandEvent, CommandMenu, CommandTyping, CommandFestival:
		if _, err := onOff(cmd.Args); err != nil {
			return Command{}, err
		}
	case CommandTime:
		if _, err := hhmm(cmd.Args); err != nil {
			return Command{}, err
		}
	case CommandVote:
		if _, err := ballot(cmd.Args); err != nil {
			return Command{}, err
		}
	case CommandStatus:
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	return cmd, nil
}

// ReadCommands parses lines from r until EOF or ctx is done. Bad lines are logged and skipped.
func ReadCommands(ctx context.Context, r io.Reader) <-chan Command {
	out := make(chan Command)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				log.Warn().Err(err).Str("line", line).Msg("ignoring console line")
				continue
			}
			select {
			case out <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Apply runs a command against the world and the driver.
func (l *Loop) Apply(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CommandPress:
		pressed, mods := splitModifiers(cmd.Args)
		l.driver.OnButtonsChanged(ctx, pressed, mods)
	case CommandWarp:
		loc, err := l.world.Warp(l.world.local, cmd.Args[0])
		if err != nil {
			return fmt.Errorf("warp to %q: %w", cmd.Args[0], err)
		}
		l.driver.OnWarped(ctx, l.world.local, loc)
	case CommandEvent:
		on, _ := onOff(cmd.Args)
		l.world.SetEvent(on)
		l.driver.OnTimeChanged(ctx)
	case CommandMenu:
		on, _ := onOff(cmd.Args)
		l.world.SetMenuOpen(on)
	case CommandTyping:
		on, _ := onOff(cmd.Args)
		l.world.SetTyping(on)
	case CommandFestival:
		on, _ := onOff(cmd.Args)
		l.world.SetFestival(on)
	case CommandTime:
		t, _ := hhmm(cmd.Args)
		l.world.SetTime(t)
		l.driver.OnTimeChanged(ctx)
	case CommandVote:
		switch choice, _ := ballot(cmd.Args); choice {
		case "finish":
			l.driver.FinishVote(ctx)
		default:
			l.driver.CastVote(ctx, choice == "yes")
		}
	case CommandStatus:
		s := l.Snapshot()
		log.Info().
			Int("day", s.Day).
			Int("time_of_day", s.TimeOfDay).
			Bool("frozen", s.Frozen).
			Int("tick_interval_ms", s.TickIntervalMs).
			Str("location", s.Location).
			Int("players", len(s.Players)).
			Msg("status")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
	return nil
}

func splitModifiers(keys []string) (config.Pressed, orchestrator.Modifiers) {
	var mods orchestrator.Modifiers
	var rest []string
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "ctrl", "leftcontrol", "rightcontrol":
			mods.Ctrl = true
		case "shift", "leftshift", "rightshift":
			mods.Shift = true
		case "alt", "leftalt", "rightalt":
			mods.Alt = true
		default:
			rest = append(rest, k)
		}
	}
	return config.NewPressed(rest...), mods
}

func onOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("%w: expected on or off", ErrBadArgument)
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "start":
		return true, nil
	case "off", "false", "end":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", ErrBadArgument, args[0])
}

func hhmm(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected a time like 1330", ErrBadArgument)
	}
	t, err := strconv.Atoi(args[0])
	if err != nil || t < 600 || t > 2600 || t%100 >= 60 || t%10 != 0 {
		return 0, fmt.Errorf("%w: invalid time %q", ErrBadArgument, args[0])
	}
	return t, nil
}

// ballot reads the argument of a vote command: yes, no or finish.
func ballot(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected yes, no or finish", ErrBadArgument)
	}
	switch choice := strings.ToLower(args[0]); choice {
	case "yes", "no", "finish":
		return choice, nil
	}
	return "", fmt.Errorf("%w: expected yes, no or finish, got %q", ErrBadArgument, args[0])
}
