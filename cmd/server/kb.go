package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/lingorelay/internal/config"
	"github.com/vovakirdan/lingorelay/internal/store"
	"github.com/vovakirdan/lingorelay/internal/store/sqlite"
)

var kbOverrides config.Config

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect and load the knowledge base",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every knowledge entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListKnowledge(cmd.Context())
		if err != nil {
			return err
		}
		printKnowledge(cmd.OutOrStdout(), entries)
		return nil
	},
}

var kbImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Upsert entries from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := store.LoadSeedFile(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := store.Seed(cmd.Context(), st, entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries from %s\n", n, args[0])
		return nil
	},
}

func init() {
	kbCmd.PersistentFlags().StringVar(&kbOverrides.DatabasePath, "db", "", "path to the SQLite knowledge base")
	kbCmd.AddCommand(kbListCmd, kbImportCmd)
	rootCmd.AddCommand(kbCmd)
}

func openStore() (*sqlite.SQLiteStore, error) {
	cfg, _, err := loadConfig(kbOverrides)
	if err != nil {
		return nil, err
	}
	return sqlite.New(cfg.DatabasePath)
}

func printKnowledge(w io.Writer, entries []store.KnowledgeEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "knowledge base is empty")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Topic", "Category", "Updated", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, e := range entries {
		table.Append([]string{
			fmt.Sprint(e.ID),
			e.Topic,
			e.Category,
			e.UpdatedAt.Format("2006-01-02 15:04"),
			e.Content,
		})
	}
	table.Render()
}
