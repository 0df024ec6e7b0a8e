package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// RosterDays are the day-of-week columns of the staff roster, in sheet order.
var RosterDays = [...]string{"MON", "TUE", "WED", "THU", "FRI"}

// RosterColumns are the fixed columns of the staff roster table.
var RosterColumns = []ColumnSpec{
	{Name: "week", Label: "Week"},
	{Name: "team", Label: "Team"},
	{Name: "day", Label: "Day"},
	{Name: "date", Label: "Date"},
	{Name: "name", Label: "Name"},
}

// RosterLayout locates the roster columns in the sheet.
// The five day columns (MON..FRI) positionally follow the team column.
type RosterLayout struct {
	WeekColumn int
	TeamColumn int
	Anchor     time.Time // Monday of week 1
}

func (l RosterLayout) dayColumn(day int) int {
	return l.TeamColumn + 1 + day
}

// date returns the date of `day` (0 = Monday) of `week` (1-based).
func (l RosterLayout) date(week, day int) string {
	return l.Anchor.AddDate(0, 0, (week-1)*7+day).Format("2006-01-02")
}

type (
	rosterRecord struct {
		week int
		team string
		days [len(RosterDays)][]string
	}

	// rosterAccumulator is the carry-forward context of a roster scan.
	rosterAccumulator struct {
		week    int
		records []*rosterRecord
	}
)

// step folds one sheet row into the accumulator.
func (acc rosterAccumulator) step(layout RosterLayout, cells []Cell) rosterAccumulator {
	if week, ok := numericCell(cellAt(cells, layout.WeekColumn)); ok {
		acc.week = week
		return acc
	}

	var rec *rosterRecord
	if team := strings.TrimSpace(cellString(cellAt(cells, layout.TeamColumn))); team != "" {
		rec = &rosterRecord{week: acc.week, team: team}
		acc.records = append(acc.records, rec)
	} else if n := len(acc.records); n > 0 {
		rec = acc.records[n-1]
	} else {
		return acc // no team yet
	}

	for d := range RosterDays {
		c := cellAt(cells, layout.dayColumn(d))
		if isBlankCell(c) {
			continue
		}
		rec.days[d] = append(rec.days[d], cellString(c))
	}
	return acc
}

// entries flattens the records into one entry per non-empty day.
func (acc rosterAccumulator) entries(layout RosterLayout) []RosterEntry {
	var out []RosterEntry
	for _, rec := range acc.records {
		for d, occupants := range rec.days {
			if len(occupants) == 0 {
				continue
			}
			out = append(out, RosterEntry{
				Week: rec.week,
				Team: rec.team,
				Day:  RosterDays[d],
				Date: layout.date(rec.week, d),
				Name: strings.Join(occupants, ", "),
			})
		}
	}
	return out
}

// NormalizeRoster reconstructs the (team, week, day) occupancies of a staff roster sheet,
// where the week only appears on the row starting it and the team only on its first row.
func NormalizeRoster(layout RosterLayout, rows [][]Cell) []RosterEntry {
	var acc rosterAccumulator
	for _, cells := range rows {
		acc = acc.step(layout, cells)
	}
	return acc.entries(layout)
}

// RosterRows converts roster entries to rows of the RosterColumns.
func RosterRows(entries []RosterEntry) []NormalizedRow {
	rows := make([]NormalizedRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, NormalizedRow{
			"week": null.StringFrom(strconv.Itoa(e.Week)),
			"team": null.StringFrom(e.Team),
			"day":  null.StringFrom(e.Day),
			"date": null.StringFrom(e.Date),
			"name": null.StringFrom(e.Name),
		})
	}
	return rows
}

func cellAt(cells []Cell, i int) Cell {
	if i < 0 || i >= len(cells) {
		return nil
	}
	return cells[i]
}

func cellString(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return formatCell("", c).String
	}
}

// numericCell returns the integer value of a numeric cell (or of a string holding a number).
func numericCell(c Cell) (int, bool) {
	switch v := c.(type) {
	case float64:
		return int(math.Round(v)), true
	case int:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	}
	return 0, false
}
