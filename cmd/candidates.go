// File: cmd/candidates.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/keepalive-cli/internal/login"
)

// newCandidatesCmd prints the URLs a run would try for a panel, in order,
// without starting a browser.
func newCandidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "candidates <panel>",
		Short:   "Print the candidate login URLs for a panel reference",
		Example: "  keepalive candidates panel4.serv00.com",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd.Context())
			if err != nil {
				return err
			}
			urls := login.WithExtraPaths(login.CandidateURLs(args[0]), args[0], cfg.Login.ExtraPaths)
			if len(urls) == 0 {
				return fmt.Errorf("panel reference %q yields no candidate URLs", args[0])
			}
			out := cmd.OutOrStdout()
			for i, u := range urls {
				fmt.Fprintf(out, "%d\t%s\n", i+1, u)
			}
			return nil
		},
	}
}
