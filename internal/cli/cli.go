// Package cli parses smartspeak command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandServe      Command = "serve"
	CommandAsk        Command = "ask"
	CommandToggle     Command = "toggle"
	CommandStart      Command = "start"
	CommandStop       Command = "stop"
	CommandStatus     Command = "status"
	CommandLanguage   Command = "language"
	CommandTranscript Command = "transcript"
	CommandQuit       Command = "quit"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// maxArgs is the number of positional arguments each command accepts.
var maxArgs = map[Command]int{
	CommandServe:      0,
	CommandAsk:        1,
	CommandToggle:     0,
	CommandStart:      0,
	CommandStop:       0,
	CommandStatus:     0,
	CommandLanguage:   1,
	CommandTranscript: 0,
	CommandQuit:       0,
	CommandDevices:    0,
	CommandDoctor:     0,
	CommandVersion:    0,
	CommandHelp:       0,
}

// IsControl reports whether the command is served by the owner process.
func (c Command) IsControl() bool {
	switch c {
	case CommandToggle, CommandStart, CommandStop, CommandStatus,
		CommandLanguage, CommandTranscript, CommandQuit:
		return true
	default:
		return false
	}
}

type Parsed struct {
	Command    Command
	Arg        string
	ConfigPath string
	// Language is the ask command's --language override.
	Language string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	var positional []string
	commandSeen := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if commandSeen {
			if parsed.Command == CommandAsk && arg == "--language" {
				i++
				if i >= len(args) {
					return Parsed{}, errors.New("--language requires a tag")
				}
				parsed.Language = strings.TrimSpace(args[i])
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
			}
			positional = append(positional, arg)
			continue
		}

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := maxArgs[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			commandSeen = true
		}
	}

	if len(positional) > maxArgs[parsed.Command] {
		return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
	}
	if len(positional) == 1 {
		parsed.Arg = strings.TrimSpace(positional[0])
	}
	if parsed.Command == CommandAsk && parsed.Arg == "" {
		return Parsed{}, errors.New("ask requires a WAV file path")
	}
	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [arg]

Commands:
  serve            Run the voice session owner in the foreground
  ask FILE [--language TAG]
                   Answer one recorded WAV question and speak the reply
  toggle           Start a turn, or end the current one and get a spoken reply
  start            Start capturing a turn
  stop             Stop capturing and process the turn
  status           Print the current session state
  language [TAG]   Print or set the session language (auto, en, he, ...)
  transcript       Print the conversation so far
  quit             Ask the running owner to exit
  devices          List available input devices
  doctor           Run configuration and environment checks
  version          Print version information
  help             Show this help

Flags:
  --config PATH   Config file path (default: $SMARTSPEAK_CONFIG, then $XDG_CONFIG_HOME/smartspeak/config.conf)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
