/*
Package factory provides JSON to Go work schedule conversion.

PURPOSE:
  Converts JSON schedule definitions into schedule.WorkSchedule values and
  back. Schedules arrive from the HTTP API, from files passed to the CLI, and
  from the database, all in this one format.

JSON SCHEMA:
  {
    "id": "std-fortnight",
    "name": "Standard fortnight",
    "owner": {"kind": "organization", "id": "acme"},
    "weeks": {
      "1": {
        "monday": {"start": "09:00", "end": "17:00", "breaks": {"lunch": true, "smoko": true}},
        ...
      },
      "2": { ... }
    },
    "rdos": {"2": ["friday"]}
  }

KEY FEATURES:
  - Week keys must be "1" or "2"; anything else is a configuration error
  - Weekday names are case-insensitive on input, lower-case on output
  - Every configured day is range-checked (end after start)

USAGE:
  f := NewScheduleFactory()
  ws, err := f.ParseSchedule(jsonString)

  // From a preset
  ws, err := f.ParseSchedule(NineDayFortnightJSON("9df", "Nine day fortnight", "07:30", "16:30"))

SEE ALSO:
  - schedule/types.go: WorkSchedule type definition
  - store/sqlite/sqlite.go: stores schedules in this format
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type ScheduleJSON struct {
	ID    string                        `json:"id"`
	Name  string                        `json:"name"`
	Owner *OwnerJSON                    `json:"owner,omitempty"`
	Weeks map[string]map[string]DayJSON `json:"weeks"`
	RDOs  map[string][]string           `json:"rdos,omitempty"`
}

type OwnerJSON struct {
	Kind string `json:"kind"` // user, organization
	ID   string `json:"id"`
}

type DayJSON struct {
	Start  string     `json:"start,omitempty"`
	End    string     `json:"end,omitempty"`
	Breaks BreaksJSON `json:"breaks"`
}

type BreaksJSON struct {
	Lunch bool `json:"lunch"`
	Smoko bool `json:"smoko"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

// ScheduleFactory converts JSON schedules to Go structs.
type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseSchedule parses a JSON string into a validated WorkSchedule.
func (f *ScheduleFactory) ParseSchedule(jsonStr string) (*schedule.WorkSchedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(jsonStr), &sj); err != nil {
		return nil, fmt.Errorf("failed to parse schedule JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScheduleJSON to a validated WorkSchedule.
func (f *ScheduleFactory) FromJSON(sj ScheduleJSON) (*schedule.WorkSchedule, error) {
	ws := &schedule.WorkSchedule{
		ID:    schedule.ScheduleID(sj.ID),
		Name:  sj.Name,
		Owner: schedule.Owner{Kind: schedule.OwnerOrganization},
		Weeks: make(map[int]schedule.Week),
		RDOs:  make(map[int][]generic.Weekday),
	}
	if sj.Owner != nil {
		kind, err := parseOwnerKind(sj.Owner.Kind)
		if err != nil {
			return nil, err
		}
		ws.Owner = schedule.Owner{Kind: kind, ID: sj.Owner.ID}
	}

	for key, days := range sj.Weeks {
		week, err := parseWeek(key)
		if err != nil {
			return nil, err
		}
		w := make(schedule.Week, len(days))
		for name, dj := range days {
			day, err := generic.ParseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("week %d: %w", week, err)
			}
			w[day] = &schedule.DayConfig{
				Start:  dj.Start,
				End:    dj.End,
				Breaks: schedule.BreakConfig{Lunch: dj.Breaks.Lunch, Smoko: dj.Breaks.Smoko},
			}
		}
		ws.Weeks[week] = w
	}

	for key, names := range sj.RDOs {
		week, err := parseWeek(key)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			day, err := generic.ParseWeekday(name)
			if err != nil {
				return nil, fmt.Errorf("rdo week %d: %w", week, err)
			}
			ws.RDOs[week] = append(ws.RDOs[week], day)
		}
	}

	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return ws, nil
}

// ToJSON converts a WorkSchedule to its JSON form.
func (f *ScheduleFactory) ToJSON(ws *schedule.WorkSchedule) ScheduleJSON {
	sj := ScheduleJSON{
		ID:    string(ws.ID),
		Name:  ws.Name,
		Weeks: make(map[string]map[string]DayJSON),
	}
	if ws.Owner.Kind != "" {
		sj.Owner = &OwnerJSON{Kind: string(ws.Owner.Kind), ID: ws.Owner.ID}
	}
	for week, days := range ws.Weeks {
		out := make(map[string]DayJSON)
		for day, cfg := range days {
			if cfg == nil {
				continue
			}
			out[string(day)] = DayJSON{
				Start:  cfg.Start,
				End:    cfg.End,
				Breaks: BreaksJSON{Lunch: cfg.Breaks.Lunch, Smoko: cfg.Breaks.Smoko},
			}
		}
		sj.Weeks[strconv.Itoa(week)] = out
	}
	if len(ws.RDOs) > 0 {
		sj.RDOs = make(map[string][]string)
		for week, days := range ws.RDOs {
			names := make([]string, 0, len(days))
			for _, d := range days {
				names = append(names, string(d))
			}
			sort.Strings(names)
			sj.RDOs[strconv.Itoa(week)] = names
		}
	}
	return sj
}

// Marshal renders ws as a JSON string.
func (f *ScheduleFactory) Marshal(ws *schedule.WorkSchedule) (string, error) {
	data, err := json.Marshal(f.ToJSON(ws))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseWeek(key string) (int, error) {
	week, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", generic.ErrInvalidWeek, key)
	}
	if week != 1 && week != 2 {
		return 0, &generic.WeekNumberError{Week: week}
	}
	return week, nil
}

func parseOwnerKind(s string) (schedule.OwnerKind, error) {
	switch schedule.OwnerKind(s) {
	case schedule.OwnerUser:
		return schedule.OwnerUser, nil
	case schedule.OwnerOrganization, "":
		return schedule.OwnerOrganization, nil
	}
	return "", fmt.Errorf("unknown owner kind %q", s)
}
