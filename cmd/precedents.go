package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lawgenie/compliance-cli/internal/precedent"
)

var precedentsCmd = &cobra.Command{
	Use:   "precedents",
	Short: "Manage the precedent case corpus",
}

var precedentsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import precedent cases from a JSON-lines file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open import file")
		}
		defer f.Close()

		corpus, err := precedent.NewSQLiteCorpus(cfg.Precedent.DBPath)
		if err != nil {
			return eris.Wrap(err, "open precedent corpus")
		}
		defer corpus.Close()

		n, err := corpus.Import(cmd.Context(), f)
		if err != nil {
			return eris.Wrap(err, "import precedents")
		}

		total, err := corpus.Count(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "count precedents")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d cases (%d total)\n", n, total)
		return nil
	},
}

func init() {
	precedentsCmd.AddCommand(precedentsImportCmd)
	rootCmd.AddCommand(precedentsCmd)
}
