package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/applytrak/applytrak/internal/schemas"
	"github.com/applytrak/applytrak/internal/store"
)

var validateImportCmd = &cobra.Command{
	Use:   "validate-import <file>",
	Short: "Check an import file against the import schema",
	Long:  "Validates an application import file (a bare array or an export envelope) without importing it. Exits non-zero when the file is invalid.",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateImport,
}

func init() {
	rootCmd.AddCommand(validateImportCmd)
}

func runValidateImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("import file not found: %s", path)
		}
		return fmt.Errorf("failed to read import file: %w", err)
	}

	file, err := store.ParseImport(data)
	if err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Import file has %d problem(s):\n", len(validationErr.Errors))
			for _, fe := range validationErr.Errors {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("import file is invalid")
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Import file is valid: %d application(s)", len(file.Applications))
	if file.Goals != nil {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), " and goals")
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
