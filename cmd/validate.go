package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/smazurov/streamrelay/internal/relay"
	"github.com/smazurov/streamrelay/internal/relay/store"
)

// CreateValidateCmd creates the validate command, which checks every
// stream and forward definition in the config file without starting
// anything.
func CreateValidateCmd() *cobra.Command {
	var configFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the streams configuration file",
		Long: `Loads the configuration file and validates every stream spec and ` +
			`forward task definition: roles, URLs, numeric ranges, and forward ` +
			`references. Exits non-zero when any definition is invalid.`,
		Run: func(_ *cobra.Command, _ []string) {
			file, err := store.LoadFile(configFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}

			problems := validateFile(file)
			if !quiet {
				fmt.Printf("%d stream(s), %d forward task(s) in %s\n",
					len(file.Streams), len(file.Forwards), configFile)
			}
			if len(problems) == 0 {
				if !quiet {
					fmt.Println("configuration is valid")
				}
				return
			}
			for _, p := range problems {
				fmt.Fprintf(os.Stderr, "error: %s\n", p)
			}
			os.Exit(1)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "streams.toml", "Path to streams configuration file")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print errors")

	return cmd
}

// validateFile checks every definition in the file and returns one
// message per problem, sorted for stable output.
func validateFile(file store.File) []string {
	var problems []string

	for id, spec := range file.Streams {
		spec.ID = id
		spec.ApplyDefaults()
		if err := spec.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("stream %q: %v", id, err))
		}
	}

	for id, fwd := range file.Forwards {
		if fwd.PullID == "" || fwd.PushID == "" {
			problems = append(problems, fmt.Sprintf("forward %q: pull_id and push_id are required", id))
			continue
		}
		pull, ok := file.Streams[fwd.PullID]
		if !ok {
			problems = append(problems, fmt.Sprintf("forward %q: pull stream %q not found", id, fwd.PullID))
		} else if pull.Role != relay.RolePull {
			problems = append(problems, fmt.Sprintf("forward %q: stream %q is not a pull stream", id, fwd.PullID))
		}
		push, ok := file.Streams[fwd.PushID]
		if !ok {
			problems = append(problems, fmt.Sprintf("forward %q: push stream %q not found", id, fwd.PushID))
		} else if push.Role != relay.RolePush {
			problems = append(problems, fmt.Sprintf("forward %q: stream %q is not a push stream", id, fwd.PushID))
		}
	}

	sort.Strings(problems)
	return problems
}
