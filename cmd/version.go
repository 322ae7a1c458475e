package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/metal-toolbox/bootorder/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build information",
	Run: func(_ *cobra.Command, _ []string) {
		info, err := version.Current().AsMap()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
