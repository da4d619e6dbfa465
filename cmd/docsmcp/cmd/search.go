package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pptxagent/docsmcp"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search the documentation index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		docs := docsmcp.NewDocsClient(client)
		results, err := docs.SearchDocumentation(cmd.Context(), args[0], searchLimit)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%s\n  %s\n", r.Title, r.URL)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
