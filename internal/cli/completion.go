package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"

	"github.com/vburojevic/calltap/internal/flamegraph"
	"github.com/vburojevic/calltap/internal/selector"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

// completionFlag is a flag and the values that complete after it.
type completionFlag struct {
	Long  string
	Short rune
	Words []string
	Files bool
	PIDs  bool
}

func (f completionFlag) tokens() []string {
	if f.Short == 0 {
		return []string{"--" + f.Long}
	}
	return []string{"-" + string(f.Short), "--" + f.Long}
}

func (f completionFlag) takesValue() bool {
	return f.PIDs || f.Files || len(f.Words) > 0
}

// completionCommand is one subcommand. The unnamed entry completes a bare
// invocation, which runs trace.
type completionCommand struct {
	Name  string
	Flags []completionFlag
	Args  []string
	Files bool
}

func (c completionCommand) flagTokens() []string {
	return lo.Uniq(lo.FlatMap(c.Flags, func(f completionFlag, _ int) []string { return f.tokens() }))
}

type completionModel struct {
	Commands []completionCommand
}

// Run executes the completion command.
func (c *CompletionCmd) Run(globals *Globals, ctx *kong.Context) error {
	var root *kong.Node
	if ctx != nil && ctx.Model != nil {
		root = ctx.Model.Node
	}
	m := newCompletionModel(root)

	var sb strings.Builder
	switch c.Shell {
	case "bash":
		writeBashCompletion(&sb, m)
	case "zsh":
		writeZshCompletion(&sb, m)
	case "fish":
		writeFishCompletion(&sb, m)
	default:
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	_, err := io.WriteString(globals.Stdout, sb.String())
	return err
}

func newCompletionModel(root *kong.Node) completionModel {
	if root == nil {
		return completionModel{}
	}
	global := completionFlags(root.Flags)

	bare := completionCommand{Flags: global}
	var commands []completionCommand
	for _, child := range visibleCommands(root) {
		cmd := completionCommand{
			Name:  child.Name,
			Flags: append(completionFlags(child.Flags), global...),
			Args:  lo.Map(visibleCommands(child), func(n *kong.Node, _ int) string { return n.Name }),
		}
		for _, p := range child.Positional {
			cmd.Args = append(cmd.Args, enumValues(p.Enum)...)
			if p.Tag != nil && lo.Contains([]string{"existingfile", "path", "file"}, p.Tag.Type) {
				cmd.Files = true
			}
		}
		if child == root.DefaultCmd {
			bare.Flags = cmd.Flags
		}
		bare.Args = append(bare.Args, child.Name)
		commands = append(commands, cmd)
	}
	return completionModel{Commands: append([]completionCommand{bare}, commands...)}
}

func visibleCommands(n *kong.Node) []*kong.Node {
	return lo.Filter(n.Children, func(c *kong.Node, _ int) bool {
		return c != nil && c.Type == kong.CommandNode && !c.Hidden
	})
}

func completionFlags(flags []*kong.Flag) []completionFlag {
	return lo.FilterMap(flags, func(f *kong.Flag, _ int) (completionFlag, bool) {
		if f == nil || f.Hidden {
			return completionFlag{}, false
		}
		cf := completionFlag{Long: f.Name, Short: f.Short}
		switch f.Name {
		case "pid":
			cf.PIDs = true
		case "config":
			cf.Words, cf.Files = selector.Bundled(), true
		case "output":
			cf.Files = true
		case "type":
			cf.Words = flamegraph.Types
		default:
			cf.Words = enumValues(f.Enum)
		}
		return cf, true
	})
}

func enumValues(enum string) []string {
	return lo.Compact(lo.Map(strings.Split(enum, ","), func(v string, _ int) string {
		return strings.TrimSpace(v)
	}))
}

func (m completionModel) names() []string {
	return lo.Compact(lo.Map(m.Commands, func(c completionCommand, _ int) string { return c.Name }))
}

// valueFlags lists every flag that takes a completable value, once per name.
func (m completionModel) valueFlags() []completionFlag {
	all := lo.FlatMap(m.Commands, func(c completionCommand, _ int) []completionFlag {
		return lo.Filter(c.Flags, func(f completionFlag, _ int) bool { return f.takesValue() })
	})
	return lo.UniqBy(all, func(f completionFlag) string { return f.Long })
}

func writeBashCompletion(sb *strings.Builder, m completionModel) {
	sb.WriteString(`# calltap bash completion script
# Add to ~/.bashrc or ~/.bash_profile:
#   eval "$(calltap completion bash)"

_calltap_completions() {
    local cur prev words cword
    _init_completion || return

    local cmd="" i
    for ((i=1; i < cword; i++)); do
        case "${words[i]}" in
`)
	if names := m.names(); len(names) > 0 {
		fmt.Fprintf(sb, "            %s)\n                cmd=\"${words[i]}\"\n                break\n                ;;\n", strings.Join(names, "|"))
	}
	sb.WriteString(`        esac
    done

    case "${prev}" in
`)
	for _, f := range m.valueFlags() {
		fmt.Fprintf(sb, "        %s)\n", strings.Join(f.tokens(), "|"))
		switch {
		case f.PIDs:
			sb.WriteString("            COMPREPLY=($(compgen -W \"$(ps -eo pid= 2>/dev/null)\" -- \"${cur}\"))\n")
		case f.Files:
			fmt.Fprintf(sb, "            COMPREPLY=($(compgen -W \"%s\" -- \"${cur}\") $(compgen -f -- \"${cur}\"))\n", strings.Join(f.Words, " "))
		default:
			fmt.Fprintf(sb, "            COMPREPLY=($(compgen -W \"%s\" -- \"${cur}\"))\n", strings.Join(f.Words, " "))
		}
		sb.WriteString("            return\n            ;;\n")
	}
	sb.WriteString(`    esac

    local flags="" args="" files=""
    case "${cmd}" in
`)
	for _, c := range m.Commands {
		fmt.Fprintf(sb, "        %q)\n", c.Name)
		fmt.Fprintf(sb, "            flags=\"%s\"\n", strings.Join(c.flagTokens(), " "))
		fmt.Fprintf(sb, "            args=\"%s\"\n", strings.Join(c.Args, " "))
		if c.Files {
			sb.WriteString("            files=1\n")
		}
		sb.WriteString("            ;;\n")
	}
	sb.WriteString(`    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=($(compgen -W "${flags}" -- "${cur}"))
    elif [[ -n "${args}" ]]; then
        COMPREPLY=($(compgen -W "${args}" -- "${cur}"))
    elif [[ -n "${files}" ]]; then
        COMPREPLY=($(compgen -f -- "${cur}"))
    fi
}

complete -F _calltap_completions calltap
`)
}

func writeZshCompletion(sb *strings.Builder, m completionModel) {
	sb.WriteString(`#compdef calltap
# calltap zsh completion script
# Add to ~/.zshrc:
#   eval "$(calltap completion zsh)"

_calltap_pids() {
  local -a pids
  pids=(${(f)"$(ps -eo pid=,comm= 2>/dev/null | sed 's/^ *//;s/ /:/')"})
  _describe 'process' pids
}

_calltap() {
  local cmd="" i
  for ((i=2; i < CURRENT; i++)); do
    case "${words[i]}" in
`)
	if names := m.names(); len(names) > 0 {
		fmt.Fprintf(sb, "      %s) cmd=\"${words[i]}\"; break ;;\n", strings.Join(names, "|"))
	}
	sb.WriteString(`    esac
  done

  case "${words[CURRENT-1]}" in
`)
	for _, f := range m.valueFlags() {
		fmt.Fprintf(sb, "    %s)\n", strings.Join(f.tokens(), "|"))
		if f.PIDs {
			sb.WriteString("      _calltap_pids\n")
		}
		if len(f.Words) > 0 {
			fmt.Fprintf(sb, "      compadd -- %s\n", strings.Join(f.Words, " "))
		}
		if f.Files {
			sb.WriteString("      _files\n")
		}
		sb.WriteString("      return\n      ;;\n")
	}
	sb.WriteString(`  esac

  local -a flags args
  local files=""
  case "${cmd}" in
`)
	for _, c := range m.Commands {
		fmt.Fprintf(sb, "    %q)\n", c.Name)
		fmt.Fprintf(sb, "      flags=(%s)\n", strings.Join(c.flagTokens(), " "))
		fmt.Fprintf(sb, "      args=(%s)\n", strings.Join(c.Args, " "))
		if c.Files {
			sb.WriteString("      files=1\n")
		}
		sb.WriteString("      ;;\n")
	}
	sb.WriteString(`  esac

  if [[ "${words[CURRENT]}" == -* ]]; then
    compadd -- ${flags[@]}
  elif (( ${#args[@]} > 0 )); then
    compadd -- ${args[@]}
  elif [[ -n "${files}" ]]; then
    _files
  fi
}

compdef _calltap calltap
`)
}

func writeFishCompletion(sb *strings.Builder, m completionModel) {
	sb.WriteString(`# calltap fish completion script
# Add to ~/.config/fish/completions/calltap.fish

complete -c calltap -f
`)
	for _, c := range m.Commands {
		cond := "__fish_use_subcommand"
		if c.Name != "" {
			cond = "__fish_seen_subcommand_from " + c.Name
		}
		sb.WriteString("\n")
		if len(c.Args) > 0 {
			fmt.Fprintf(sb, "complete -c calltap -n %q -a %q\n", cond, strings.Join(c.Args, " "))
		}
		if c.Files {
			fmt.Fprintf(sb, "complete -c calltap -n %q -F\n", cond)
		}
		for _, f := range c.Flags {
			fmt.Fprintf(sb, "complete -c calltap -n %q -l %s", cond, f.Long)
			if f.Short != 0 {
				fmt.Fprintf(sb, " -s %c", f.Short)
			}
			switch {
			case f.PIDs:
				sb.WriteString(` -xa "(ps -eo pid= 2>/dev/null | string trim)"`)
			case f.Files && len(f.Words) > 0:
				fmt.Fprintf(sb, " -rF -a %q", strings.Join(f.Words, " "))
			case f.Files:
				sb.WriteString(" -rF")
			case len(f.Words) > 0:
				fmt.Fprintf(sb, " -xa %q", strings.Join(f.Words, " "))
			}
			sb.WriteString("\n")
		}
	}
}
