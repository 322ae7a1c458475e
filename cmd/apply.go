package cmd

import (
	"os"

	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/spf13/cobra"
)

// applyCmd makes the remote policy match the policy file
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create, update or delete a boot order policy to match the policy file",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := runReconcile(cmd.Context(), args, ""); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	applyCmd.Flags().StringVarP(&args.PolicyFile, "policy", "p", "", "boot order policy parameters file, YAML or JSON")
	applyCmd.Flags().BoolVarP(&args.Check, "check", "", false, "report what would change without writing")

	if err := applyCmd.MarkFlagRequired("policy"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(applyCmd)
}

// deleteCmd removes the policy named in the policy file
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the boot order policy named in the policy file",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := runReconcile(cmd.Context(), args, model.StateAbsent); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	deleteCmd.Flags().StringVarP(&args.PolicyFile, "policy", "p", "", "boot order policy parameters file, YAML or JSON")
	deleteCmd.Flags().BoolVarP(&args.Check, "check", "", false, "report what would change without writing")

	if err := deleteCmd.MarkFlagRequired("policy"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(deleteCmd)
}
