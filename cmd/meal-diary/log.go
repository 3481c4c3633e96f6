// cmd/meal-diary/log.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meal-diary/internal/models"
	"meal-diary/internal/mutator"
)

var (
	logDate   string
	logSlot   string
	logUnit   string
	logMacros models.MacroSnapshot
)

var logCmd = &cobra.Command{
	Use:   "log <food-name> <quantity>",
	Short: "Record a portion of food",
	Long: `Records a portion in the diary. Macro values are absolute for the given
quantity; the per-unit rates are derived by the record store.`,
	Args: cobra.ExactArgs(2),
	RunE: runLog,
}

func init() {
	logCmd.Flags().StringVar(&logDate, "date", "", "day to record the portion on (default today)")
	logCmd.Flags().StringVar(&logSlot, "slot", string(models.Lunch), "meal slot (breakfast, lunch, dinner, snack)")
	logCmd.Flags().StringVar(&logUnit, "unit", "g", "unit (g, ml, unit)")
	logCmd.Flags().Float64Var(&logMacros.Kcal, "kcal", 0, "energy in kcal")
	logCmd.Flags().Float64Var(&logMacros.Protein, "protein", 0, "protein in grams")
	logCmd.Flags().Float64Var(&logMacros.Carbs, "carbs", 0, "carbohydrates in grams")
	logCmd.Flags().Float64Var(&logMacros.Fats, "fats", 0, "fats in grams")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	date, err := resolveDate(logDate)
	if err != nil {
		return err
	}
	quantity, err := mutator.ParseQuantity(args[1])
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	c := newClient(cfg, log)

	entry, err := c.LogEntry(cmd.Context(), models.NewEntry{
		Date:     date,
		MealSlot: models.NormalizeSlot(logSlot),
		FoodName: args[0],
		Quantity: quantity,
		Unit:     models.ParseUnit(logUnit),
		Macros:   logMacros,
	})
	if err != nil {
		return fmt.Errorf("logging entry: %w", err)
	}

	fmt.Printf("Logged %s: %.1f %s of %s in %s (%.0f kcal)\n",
		entry.ID, entry.Quantity, entry.Unit, entry.FoodName, entry.MealSlot, entry.Absolute.Kcal)
	return nil
}
