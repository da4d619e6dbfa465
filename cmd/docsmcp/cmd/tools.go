package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var callArgs string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and call the server's tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools the server exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		tools, err := client.ListTools(cmd.Context())
		if err != nil {
			return err
		}

		if len(tools) == 0 {
			fmt.Println("no tools")
			return nil
		}
		for _, tool := range tools {
			fmt.Printf("%s\t%s\n", tool.Name, tool.Description)
		}
		return nil
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call NAME",
	Short: "Call one tool and print its raw result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arguments json.RawMessage
		if callArgs != "" {
			if !json.Valid([]byte(callArgs)) {
				return fmt.Errorf("--args must be a JSON object")
			}
			arguments = json.RawMessage(callArgs)
		}

		client, err := connectClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		result, err := client.CallTool(cmd.Context(), args[0], arguments)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		var pretty any
		if err := json.Unmarshal(result, &pretty); err != nil {
			fmt.Println(string(result))
			return nil
		}
		return enc.Encode(pretty)
	},
}

func init() {
	toolsCallCmd.Flags().StringVar(&callArgs, "args", "", "tool arguments as a JSON object")
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	rootCmd.AddCommand(toolsCmd)
}
