package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/exam-engine/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured provider backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := provider.NewRegistry(credentials())

		fmt.Printf("%-12s %-20s %-32s %s\n", "PROVIDER", "CAPABILITY", "MODEL", "AVAILABLE")
		for _, d := range registry.Descriptors() {
			fmt.Printf("%-12s %-20s %-32s %v\n", d.Name, d.Capability, d.Model, d.Available)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
