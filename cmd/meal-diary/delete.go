// cmd/meal-diary/delete.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteDate string

var deleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteDate, "date", "", "day the entry belongs to (default today)")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	s, err := sessionFor(cmd, deleteDate)
	if err != nil {
		return err
	}
	defer s.close()

	id := args[0]
	if err := s.mut.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	s.mut.Wait()

	fmt.Printf("Deleted %s\n", id)
	printView(s.day.View())
	return nil
}
