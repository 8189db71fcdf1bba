package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/carbonctlgo/internal/meta"
)

const bashCompletionScript = `# bash completion for carbonctl
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_carbonctl()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "cleanup deploy dq iq mon completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--attrs -a --color -c --filter -f --local --output -o --sort -s --titles -t --tldr"

    case "$cmd" in
        iq)
            local opts="$common --token"
            ;;
        dq)
            local opts="$common --health --profile -p --tag"
            ;;
        deploy)
            local opts="$common --auto-approve -y --default-region --domain --dry-run --profile -p --region --sg-prefix --skip-dns --tag --token --ttl --zone-id"
            ;;
        cleanup)
            local opts="$common --auto-approve -y --keep --profile -p --sg-prefix --tag"
            ;;
        mon)
            local opts="$common --profile -p --tag"
            ;;
        completion)
            local opts="bash zsh"
            COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    if [[ "$prev" == "--output" || "$prev" == "-o" ]]; then
        COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
        return 0
    fi

    if [[ "$cur" == -* ]]; then
        COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
        return 0
    fi

    # Otherwise, we're on the (optional) RootDir positional - complete directories
    COMPREPLY=( $(compgen -o dirnames -- "$cur") )
    return 0
}

complete -F _carbonctl carbonctl
`

const zshCompletionScript = `#compdef carbonctl

_carbonctl() {
  local -a cmds
  cmds=(
    'cleanup:clean up superseded instances and security groups'
    'deploy:deploy to the lowest-carbon region'
    'dq:deployment query'
    'iq:carbon intensity query'
    'mon:monitor deployment health'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
    '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
    '(-c --color)'{-c,--color}'[enable colored text]'
    '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
    '--local[render timestamps in local time]'
    '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
    '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
    '(-t --titles)'{-t,--titles}'[show titles]'
    '--tldr[show tldr page]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'carbonctl commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    iq)
      _arguments -C \
        $common \
        '--token[Electricity Maps API token]:token'
      ;;
    dq)
      _arguments -C \
        $common \
        '--health[probe each instance]' \
        '(-p --profile)'{-p,--profile}'[AWS profile]:profile' \
        '--tag[instance Name tag]:tag'
      ;;
    deploy)
      _arguments -C \
        $common \
        '(-y --auto-approve)'{-y,--auto-approve}'[apply without confirmation]' \
        '--default-region[fallback region]:region' \
        '--domain[DNS domain]:domain' \
        '--dry-run[plan only]' \
        '(-p --profile)'{-p,--profile}'[AWS profile]:profile' \
        '--region[pin target region]:region' \
        '--sg-prefix[security group prefix]:prefix' \
        '--skip-dns[skip the DNS update]' \
        '--tag[instance Name tag]:tag' \
        '--token[Electricity Maps API token]:token' \
        '--ttl[DNS record TTL]:ttl' \
        '--zone-id[Route53 hosted zone id]:zone' \
        '::RootDir:_directories'
      ;;
    cleanup)
      _arguments -C \
        $common \
        '(-y --auto-approve)'{-y,--auto-approve}'[sweep without confirmation]' \
        '--keep[region to leave alone]:region' \
        '(-p --profile)'{-p,--profile}'[AWS profile]:profile' \
        '--sg-prefix[security group prefix]:prefix' \
        '--tag[instance Name tag]:tag'
      ;;
    mon)
      _arguments -C \
        $common \
        '(-p --profile)'{-p,--profile}'[AWS profile]:profile' \
        '--tag[instance Name tag]:tag'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _carbonctl carbonctl carbonctlgo
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	switch shell {
	case "bash":
		fmt.Fprint(os.Stdout, bashCompletionScript)
	case "zsh":
		fmt.Fprint(os.Stdout, zshCompletionScript)
	default:
		// Try to detect from SHELL or print help
		sh := os.Getenv("SHELL")
		if strings.HasSuffix(sh, "zsh") {
			fmt.Fprint(os.Stdout, zshCompletionScript)
		} else if strings.HasSuffix(sh, "bash") {
			fmt.Fprint(os.Stdout, bashCompletionScript)
		} else {
			fmt.Fprintln(os.Stderr, "usage: carbonctl completion [bash|zsh]")
			return nil
		}
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "carbonctl completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
