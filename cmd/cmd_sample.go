// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample [name]",
	Short: "Prints a sample input served by the backend, or lists the configured ones",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			for _, name := range cfg.Backend.Samples {
				fmt.Println(name)
			}

			return nil
		}

		text, err := newGeocoder(nil).Sample(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Print(text)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}
