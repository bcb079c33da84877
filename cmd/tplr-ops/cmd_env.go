package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/tplr-ai/templar-ops/internal/envfile"
	"github.com/tplr-ai/templar-ops/internal/r2"
)

func newEnvCmd() *cobra.Command {
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Generate and verify the R2 credentials env file",
	}

	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Write the .env file from the current environment",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			content, err := envfile.Render(r2.OSLookup)
			if err != nil {
				return err
			}
			if err := envfile.Write(cfg.EnvFile, content); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d entries)\n", cfg.EnvFile, len(envfile.Keys))
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the .env file and report drift against the environment",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			data, err := os.ReadFile(cfg.EnvFile)
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%s does not exist, run `tplr-ops env write` first", cfg.EnvFile)
			}
			if err != nil {
				return err
			}
			if err := envfile.Verify(string(data)); err != nil {
				return err
			}

			expected, err := envfile.Render(r2.OSLookup)
			if err != nil {
				// Environment incomplete: the file itself is still valid.
				fmt.Printf("%s is valid (environment incomplete, drift not checked)\n", cfg.EnvFile)
				return nil
			}

			diff, err := envfile.Drift(cfg.EnvFile, expected)
			if err != nil {
				return err
			}
			if diff != "" {
				fmt.Println(diff)
				return fmt.Errorf("%s has drifted from the environment", cfg.EnvFile)
			}
			fmt.Printf("%s is valid and current\n", cfg.EnvFile)
			return nil
		},
	}

	envCmd.AddCommand(writeCmd, checkCmd)
	return envCmd
}
