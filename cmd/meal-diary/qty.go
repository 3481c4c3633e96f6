// cmd/meal-diary/qty.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meal-diary/internal/mutator"
)

var (
	qtyDate    string
	stepDown   bool
	stepFine   bool
	stepCoarse bool
	stepTimes  int
)

var qtyCmd = &cobra.Command{
	Use:   "qty <entry-id> <quantity>",
	Short: "Set an entry's quantity",
	Long: `Applies the new quantity optimistically and commits it to the tool server.
The entry is rolled back to its last confirmed state if the commit fails.`,
	Args: cobra.ExactArgs(2),
	RunE: runQty,
}

var stepCmd = &cobra.Command{
	Use:   "step <entry-id>",
	Short: "Step an entry's quantity up or down",
	Long: `Steps by 10 for mass and volume units and 1 for count units. --fine steps by 1
and --coarse by 50. Repeated steps are committed one at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: runStep,
}

func init() {
	qtyCmd.Flags().StringVar(&qtyDate, "date", "", "day the entry belongs to (default today)")
	rootCmd.AddCommand(qtyCmd)

	stepCmd.Flags().StringVar(&qtyDate, "date", "", "day the entry belongs to (default today)")
	stepCmd.Flags().BoolVar(&stepDown, "down", false, "step down instead of up")
	stepCmd.Flags().BoolVar(&stepFine, "fine", false, "use the fine step")
	stepCmd.Flags().BoolVar(&stepCoarse, "coarse", false, "use the coarse step")
	stepCmd.Flags().IntVarP(&stepTimes, "times", "n", 1, "number of steps")
	stepCmd.MarkFlagsMutuallyExclusive("fine", "coarse")
	rootCmd.AddCommand(stepCmd)
}

func runQty(cmd *cobra.Command, args []string) error {
	s, err := sessionFor(cmd, qtyDate)
	if err != nil {
		return err
	}
	defer s.close()

	id := args[0]
	if err := s.mut.EditText(id, args[1]); err != nil {
		return err
	}
	if err := s.mut.Submit(id); err != nil {
		return err
	}
	s.mut.Wait()

	return report(s, id)
}

func runStep(cmd *cobra.Command, args []string) error {
	if stepTimes < 1 {
		return fmt.Errorf("--times must be at least 1")
	}

	s, err := sessionFor(cmd, qtyDate)
	if err != nil {
		return err
	}
	defer s.close()

	dir := mutator.Up
	if stepDown {
		dir = mutator.Down
	}
	mod := mutator.ModDefault
	switch {
	case stepFine:
		mod = mutator.ModFine
	case stepCoarse:
		mod = mutator.ModCoarse
	}

	id := args[0]
	for i := 0; i < stepTimes; i++ {
		if err := s.mut.Step(id, dir, mod); err != nil {
			return err
		}
		e, _ := s.mut.Entry(id)
		s.log.Debug().Str("id", id).Float64("quantity", e.Quantity).Msg("Stepped")
	}
	// a queued step is re-armed when the in-flight commit resolves
	for s.mut.Phase(id) != mutator.PhaseIdle {
		if err := s.mut.Submit(id); err != nil {
			return err
		}
		s.mut.Wait()
	}

	return report(s, id)
}

// sessionFor opens and loads a session for the raw --date value.
func sessionFor(cmd *cobra.Command, rawDate string) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	date, err := resolveDate(rawDate)
	if err != nil {
		return nil, err
	}
	s, err := openSession(cfg, date)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(cmd.Context()); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func report(s *session, id string) error {
	if err := s.mut.LastError(id); err != nil {
		return fmt.Errorf("update of %s rolled back: %w", id, err)
	}
	e, ok := s.mut.Confirmed(id)
	if !ok {
		return fmt.Errorf("entry %s is no longer in the diary", id)
	}
	fmt.Printf("%s: %.1f %s, %.0f kcal, %.1f protein, %.1f carbs, %.1f fats\n",
		id, e.Quantity, e.Unit, e.Absolute.Kcal, e.Absolute.Protein, e.Absolute.Carbs, e.Absolute.Fats)
	printView(s.day.View())
	return nil
}
