package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/toil-engine/factory"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
)

var (
	scheduleFile string
	fteFlag      string
	dateFlag     string
	anchorFlag   string
)

var fortnightCmd = &cobra.Command{
	Use:   "fortnight",
	Short: "Print the fortnight hours of a schedule file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := readSchedule(scheduleFile)
		if err != nil {
			return err
		}
		fte, err := decimal.NewFromString(fteFlag)
		if err != nil {
			return fmt.Errorf("invalid --fte %q: %w", fteFlag, err)
		}
		s, err := schedule.Fortnight(ws, fte)
		if err != nil {
			return err
		}

		fmt.Printf("Schedule %s (%s)\n", ws.ID, ws.Name)
		fmt.Printf("%-20s%s\n", "Week 1", s.WeekHours[1].StringFixed(2))
		fmt.Printf("%-20s%s\n", "Week 2", s.WeekHours[2].StringFixed(2))
		fmt.Printf("%-20s%d\n", "Working days", s.WorkingDays)
		fmt.Printf("%-20s%d\n", "RDO days", s.RDODays)
		fmt.Printf("%-20s%s\n", "FTE", s.FTE.String())
		fmt.Printf("%-20s%s\n", "Total", s.Total.StringFixed(1))
		return nil
	},
}

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Resolve one calendar date against a schedule file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := readSchedule(scheduleFile)
		if err != nil {
			return err
		}
		date, err := generic.ParseDate(dateFlag)
		if err != nil {
			return err
		}
		fc := generic.DefaultFortnight()
		if anchorFlag != "" {
			if fc.Anchor, err = generic.ParseDate(anchorFlag); err != nil {
				return err
			}
		}

		res, err := schedule.NewResolver(fc).Resolve(date, ws)
		if err != nil {
			return err
		}
		b, err := res.Hours()
		if err != nil {
			return err
		}

		fmt.Printf("%s %s, week %d\n", res.Date, res.Weekday, res.Week)
		switch {
		case res.IsRDO:
			fmt.Println("Rostered day off")
		case !res.Working():
			fmt.Println("Not a working day")
		default:
			fmt.Printf("%-20s%s-%s\n", "Hours", res.Day.Start, res.Day.End)
			fmt.Printf("%-20s%s\n", "Raw", b.Raw.StringFixed(2))
			fmt.Printf("%-20s%s\n", "Breaks", b.Breaks.StringFixed(2))
			fmt.Printf("%-20s%s\n", "Net", b.Net.StringFixed(2))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{fortnightCmd, dayCmd} {
		c.Flags().StringVar(&scheduleFile, "schedule", "", "schedule JSON file")
		_ = c.MarkFlagRequired("schedule")
	}
	fortnightCmd.Flags().StringVar(&fteFlag, "fte", "1", "full-time equivalent in (0, 1]")
	dayCmd.Flags().StringVar(&dateFlag, "date", "", "calendar date (YYYY-MM-DD)")
	dayCmd.Flags().StringVar(&anchorFlag, "anchor", "", "first Monday of week 1 (default 2024-01-01)")
	_ = dayCmd.MarkFlagRequired("date")
}

func readSchedule(path string) (*schedule.WorkSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return factory.NewScheduleFactory().ParseSchedule(string(data))
}
