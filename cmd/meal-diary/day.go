// cmd/meal-diary/day.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"meal-diary/internal/diary"
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

var (
	dayDate string
	dayJSON bool
)

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Show a day's entries, totals and per-meal targets",
	Long: `Loads the day from the tool server and prints the daily totals, the target
allocated to every active meal slot and the band each macro falls in.`,
	RunE: runDay,
}

func init() {
	dayCmd.Flags().StringVar(&dayDate, "date", "", "day to show (YYYY-MM-DD, default today)")
	dayCmd.Flags().BoolVar(&dayJSON, "json", false, "print the view as JSON")
	rootCmd.AddCommand(dayCmd)
}

func runDay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	date, err := resolveDate(dayDate)
	if err != nil {
		return err
	}

	s, err := openSession(cfg, date)
	if err != nil {
		return err
	}
	defer s.close()

	v, err := s.load(cmd.Context())
	if err != nil {
		return err
	}

	if dayJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	printView(v)
	return nil
}

func printView(v diary.View) {
	fmt.Printf("\nDiary for %s", v.Date)
	if v.Source == nutrition.SourceLocal {
		fmt.Print(" (totals computed locally)")
	}
	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%-10s  %8s  %8s  %8s  %8s\n", "", "kcal", "protein", "carbs", "fats")
	printSnapshot("eaten", v.Totals)
	printSnapshot("target", v.Target)
	fmt.Printf("%-10s  %8s  %8s  %8s  %8s\n", "band",
		v.Bands[models.MacroKcal], v.Bands[models.MacroProtein],
		v.Bands[models.MacroCarbs], v.Bands[models.MacroFats])

	for _, slot := range v.Slots {
		fmt.Println("------------------------------------------------------------")
		mark := ""
		if slot.WithinTolerance {
			mark = " ok"
		}
		fmt.Printf("%s  %.0f / %.0f kcal (%s)%s\n", strings.ToUpper(string(slot.Slot)),
			slot.Totals.Kcal, slot.Target.Kcal, slot.Bands[models.MacroKcal], mark)
		for _, e := range slot.Entries {
			fmt.Printf("  %-36s  %7.1f %-6s  %6.0f kcal  [%s]\n",
				e.FoodName, e.Quantity, e.Unit, e.Absolute.Kcal, e.ID)
		}
	}
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%d entries\n", len(v.Entries))
}

func printSnapshot(label string, s models.MacroSnapshot) {
	fmt.Printf("%-10s  %8.0f  %8.1f  %8.1f  %8.1f\n", label, s.Kcal, s.Protein, s.Carbs, s.Fats)
}
