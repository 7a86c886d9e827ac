package cmd

import (
	"fmt"
	"time"

	"github.com/smazurov/paws/internal/gif"
	"github.com/smazurov/paws/internal/layout"
	"github.com/spf13/cobra"
)

// CreateGifCmd creates the gif command.
func CreateGifCmd() *cobra.Command {
	var (
		transform string
		width     int
		height    int
		at        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gif [file]",
		Short: "Inspect the frame timeline of a GIF",
		Long: `Decodes a GIF the way a gif state would and prints its frames, delays and buffer size. ` +
			`With --at, prints the frame shown at that elapsed time.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := layout.ParseTransform(transform)
			if err != nil {
				return err
			}
			tl, err := gif.LoadFile(args[0], gif.Options{Transform: t, Width: width, Height: height})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fw, fh, ft := tl.Bounds()
			fmt.Fprintf(w, "%s: %d frames, %dx%d %s, %d bytes per frame, length %s\n",
				args[0], tl.Len(), fw, fh, ft, tl.BufferSize(), tl.Length())

			var start time.Duration
			for i, end := range tl.Delays() {
				fmt.Fprintf(w, "  frame %d: %s - %s\n", i, start, end)
				start = end
			}

			if cmd.Flags().Changed("at") {
				i, err := tl.FrameIndex(at)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "at %s: frame %d\n", at, i)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&transform, "transform", "t", "normal", "Layout transform (normal, mirror, duplicate)")
	cmd.Flags().IntVar(&width, "width", 0, "Scale frames to this width")
	cmd.Flags().IntVar(&height, "height", 0, "Scale frames to this height")
	cmd.Flags().DurationVar(&at, "at", 0, "Print the frame shown at this elapsed time")
	return cmd
}
