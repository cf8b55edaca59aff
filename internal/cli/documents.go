package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/chartcode/internal/docstore"
	"github.com/ppiankov/chartcode/internal/model"
)

var (
	docTitle   string
	docContent string
	docFile    string
	docID      int
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage stored clinical notes",
	Long: `Manage the notes chartcode works on. The store is selected by store.driver
(memory, sqlite or postgres); with the memory driver notes only live for
one invocation, so use store.seed_file or a persistent driver.`,
}

var documentsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a note",
	Example: `  chartcode documents add --title "Wellness visit" --content "Annual wellness visit..."
  chartcode documents add --title "Follow-up" --file note.txt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content := docContent
		if docFile != "" {
			b, err := os.ReadFile(docFile)
			if err != nil {
				return eris.Wrap(err, "read note")
			}
			content = string(b)
		}
		if strings.TrimSpace(docTitle) == "" || strings.TrimSpace(content) == "" {
			return eris.New("--title and one of --content or --file are required")
		}

		store, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		doc := &model.Document{ID: docID, Title: docTitle, Content: content}
		if err := store.Put(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Printf("✓ Stored document %d: %s\n", doc.ID, doc.Title)
		return nil
	},
}

var documentsImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import notes from .txt, .md or .html files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		for _, path := range args {
			doc, err := docstore.ImportFile(path)
			if err != nil {
				return err
			}
			if err := store.Put(cmd.Context(), doc); err != nil {
				return err
			}
			fmt.Printf("✓ Imported %s as document %d: %s\n", path, doc.ID, doc.Title)
		}
		return nil
	},
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		docs, err := docstore.List(cmd.Context(), store)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(os.Stderr, "No documents stored.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%4d  %s\n", d.ID, d.Title)
		}
		return nil
	},
}

var documentsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		store, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		doc, err := store.Get(cmd.Context(), id)
		if err != nil {
			return eris.Wrapf(err, "document %d", id)
		}
		fmt.Printf("# %s\n\n%s\n", doc.Title, strings.TrimSpace(doc.Content))
		return nil
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		store, err := newStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Delete(cmd.Context(), id); err != nil {
			return eris.Wrapf(err, "document %d", id)
		}
		fmt.Printf("✓ Deleted document %d\n", id)
		return nil
	},
}

func init() {
	documentsAddCmd.Flags().StringVar(&docTitle, "title", "", "note title")
	documentsAddCmd.Flags().StringVar(&docContent, "content", "", "note text")
	documentsAddCmd.Flags().StringVar(&docFile, "file", "", "read note text from a file")
	documentsAddCmd.Flags().IntVar(&docID, "id", 0, "explicit document ID (default: next free)")

	documentsCmd.AddCommand(documentsAddCmd, documentsImportCmd, documentsListCmd, documentsShowCmd, documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("invalid document id %q", s)
	}
	return id, nil
}
