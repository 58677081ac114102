package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appsvc "ragdesk/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [collection] [file.pdf...]",
	Short: "Ingest PDF files into a collection",
	Long: `Creates the collection from the given title and ingests the files in order.
With --append the files are added to an existing collection instead.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Inspect and remove collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections",
	Args:  cobra.NoArgs,
	RunE:  runCollectionsList,
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a collection and all of its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionsDelete,
}

var ingestAppend bool

func init() {
	ingestCmd.Flags().BoolVarP(&ingestAppend, "append", "a", false, "Add to an existing collection")

	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsDeleteCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(collectionsCmd)
}

func localUploads(paths []string) []appsvc.FileUpload {
	uploads := make([]appsvc.FileUpload, 0, len(paths))
	for _, p := range paths {
		p := p
		uploads = append(uploads, appsvc.FileUpload{
			Filename: filepath.Base(p),
			Open:     func() (io.ReadCloser, error) { return os.Open(p) },
		})
	}
	return uploads
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, err := services()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	files := localUploads(args[1:])

	var result *appsvc.IngestResult
	if ingestAppend {
		result, err = svc.Ingest.AddDocuments(cmd.Context(), args[0], files)
	} else {
		result, err = svc.Ingest.CreateCollection(cmd.Context(), appsvc.CreateCollectionInput{Title: args[0], Files: files})
	}

	var ingestErr *appsvc.IngestError
	if errors.As(err, &ingestErr) {
		for _, f := range ingestErr.Processed {
			fmt.Fprintf(out, "ingested %s: %d pages, %d chunks\n", f.Filename, f.Pages, f.Chunks)
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	for _, f := range result.Files {
		fmt.Fprintf(out, "ingested %s: %d pages, %d chunks\n", f.Filename, f.Pages, f.Chunks)
	}
	fmt.Fprintf(out, "collection %s ready\n", result.Collection)
	return nil
}

func runCollectionsList(cmd *cobra.Command, _ []string) error {
	svc, err := services()
	if err != nil {
		return err
	}
	collections, err := svc.Collections.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	if len(collections) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no collections")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDOCUMENTS\tCHUNKS\tFILES")
	for _, c := range collections {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.Name, c.DocumentCount, c.ChunkCount, strings.Join(c.Files, ", "))
	}
	return w.Flush()
}

func runCollectionsDelete(cmd *cobra.Command, args []string) error {
	svc, err := services()
	if err != nil {
		return err
	}
	if err := svc.Collections.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", args[0])
	return nil
}
