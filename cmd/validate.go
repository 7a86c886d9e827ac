package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/smazurov/paws/internal/gif"
	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/rig"
	"github.com/spf13/cobra"
)

// CreateValidateCmd creates the validate command.
func CreateValidateCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate [rig-file]",
		Short: "Validate a rig definition",
		Long: `Parses the rig file, decodes every GIF it references and builds its interfaces and modes ` +
			`without touching hardware. Prints a summary of the rig unless --quiet is set.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "rig.toml"
			if len(args) == 1 {
				path = args[0]
			}
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			f, err := rig.Load(path)
			if err != nil {
				return err
			}
			cache, err := gif.NewCache(64)
			if err != nil {
				return err
			}
			r, err := rig.Build(f, rig.Env{Gifs: cache, BaseDir: filepath.Dir(path), Terminal: io.Discard})
			if err != nil {
				return err
			}
			defer r.Close()

			if !quiet {
				printRig(cmd.OutOrStdout(), path, r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only report errors")
	return cmd
}

func printRig(w io.Writer, path string, r *rig.Rig) {
	fmt.Fprintf(w, "%s: ok\n", path)
	if r.Device != "" {
		fmt.Fprintf(w, "device: %s\n", r.Device)
	}

	fmt.Fprintln(w, "interfaces:")
	for _, s := range r.Interfaces {
		size := "any"
		if n, ok := s.BufferSize(); ok {
			size = fmt.Sprintf("%d bytes", n)
		}
		fmt.Fprintf(w, "  %s (%s)\n", s.Name(), size)
	}

	fmt.Fprintln(w, "modes:")
	for _, m := range r.Modes {
		marker := ""
		if m.Name() == r.DefaultMode {
			marker = " *"
		}
		if sm, ok := mode.AsStateMachine(m); ok {
			fmt.Fprintf(w, "  %s%s: states %s\n", m.Name(), marker, strings.Join(sm.ListStateNames(), ", "))
		} else if bt, ok := mode.AsBufferTarget(m); ok {
			fmt.Fprintf(w, "  %s%s: %s drawer, %d bytes\n", m.Name(), marker, bt.Kind(), bt.BufferSize())
		}
	}
}
