// cmd/meal-diary/target.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"meal-diary/internal/client"
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

var (
	targetDate   string
	targetMacros models.MacroSnapshot
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Show or change daily and per-meal targets",
	RunE:  runTargetShow,
}

var targetDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Set the daily target",
	RunE:  runTargetDaily,
}

var targetSlotCmd = &cobra.Command{
	Use:   "slot <meal-slot>",
	Short: "Pin a meal slot's target, replacing the weight-based allocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetSlot,
}

var targetClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove pinned meal slot targets for the day",
	RunE:  runTargetClear,
}

func init() {
	targetCmd.PersistentFlags().StringVar(&targetDate, "date", "", "day (YYYY-MM-DD, default today)")
	for _, c := range []*cobra.Command{targetDailyCmd, targetSlotCmd} {
		c.Flags().Float64Var(&targetMacros.Kcal, "kcal", 0, "energy in kcal")
		c.Flags().Float64Var(&targetMacros.Protein, "protein", 0, "protein in grams")
		c.Flags().Float64Var(&targetMacros.Carbs, "carbs", 0, "carbohydrates in grams")
		c.Flags().Float64Var(&targetMacros.Fats, "fats", 0, "fats in grams")
		c.MarkFlagRequired("kcal")
	}
	targetCmd.AddCommand(targetDailyCmd, targetSlotCmd, targetClearCmd)
	rootCmd.AddCommand(targetCmd)
}

// targetClient resolves --date and builds a client from the config.
func targetClient() (*client.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	date, err := resolveDate(targetDate)
	if err != nil {
		return nil, "", err
	}
	return newClient(cfg, newLogger(cfg)), date, nil
}

func runTargetShow(cmd *cobra.Command, args []string) error {
	c, date, err := targetClient()
	if err != nil {
		return err
	}

	daily, err := c.FetchDailyTarget(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("fetching daily target: %w", err)
	}
	pinned, err := c.FetchPerSlotDynamicTargets(cmd.Context(), date)
	if err != nil {
		return fmt.Errorf("fetching slot targets: %w", err)
	}

	fmt.Printf("\nTargets for %s\n", date)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("%-10s  %8s  %8s  %8s  %8s\n", "", "kcal", "protein", "carbs", "fats")
	printSnapshot("daily", daily)
	if len(pinned) == 0 {
		fmt.Println("No pinned meal targets; slots are allocated by weight")
		return nil
	}
	for _, slot := range nutrition.SortedSlots(pinned) {
		printSnapshot(string(slot), pinned[slot])
	}
	return nil
}

func runTargetDaily(cmd *cobra.Command, args []string) error {
	c, date, err := targetClient()
	if err != nil {
		return err
	}
	if err := c.SetDailyTarget(cmd.Context(), date, targetMacros); err != nil {
		return fmt.Errorf("setting daily target: %w", err)
	}
	fmt.Printf("Daily target for %s set to %.0f kcal\n", date, targetMacros.Kcal)
	return nil
}

func runTargetSlot(cmd *cobra.Command, args []string) error {
	c, date, err := targetClient()
	if err != nil {
		return err
	}
	slot := models.NormalizeSlot(args[0])
	if err := c.SetSlotTarget(cmd.Context(), date, slot, targetMacros); err != nil {
		return fmt.Errorf("setting %s target: %w", slot, err)
	}
	fmt.Printf("%s target for %s pinned to %.0f kcal\n", slot, date, targetMacros.Kcal)
	return nil
}

func runTargetClear(cmd *cobra.Command, args []string) error {
	c, date, err := targetClient()
	if err != nil {
		return err
	}
	if err := c.ClearSlotTargets(cmd.Context(), date); err != nil {
		return fmt.Errorf("clearing slot targets: %w", err)
	}
	fmt.Printf("Cleared pinned meal targets for %s\n", date)
	return nil
}
