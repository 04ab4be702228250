package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"github.com/bitdefender/bddisasm/internal/logging"
)

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Keep printing lines as they are written")
	logsCmd.Flags().String("dir", ".", "Directory holding the debug logs")
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the newest debug log",
	Long: fmt.Sprintf(`Print the newest debug log. Debug logs are written to the working
directory when %s=1 is set.`, logging.EnvToFile),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		follow, _ := cmd.Flags().GetBool("follow")

		path, err := logging.LatestFile(dir)
		if err != nil {
			return err
		}
		return tailFile(cmd.Context(), path, follow, cmd.OutOrStdout())
	},
}

// tailFile copies path to w line by line. With follow it keeps waiting for
// new lines until ctx is cancelled.
func tailFile(ctx context.Context, path string, follow bool, w io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer t.Cleanup()

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(w, line.Text)
		case <-ctx.Done():
			return t.Stop()
		}
	}
}
