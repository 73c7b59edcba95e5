package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailpeek/mailpeek/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "mailpeek",
		Short: "mailpeek previews shared .eml/.msg files in chat threads",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Info())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
