// Package workbook reads meeting schedules from and writes the ordinance
// register to Excel workbooks.
package workbook

import (
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"docketline/internal/config"
	"docketline/internal/domain"
	"docketline/internal/engine"
)

const RegisterSheet = "Ordinances"

var registerHeader = []string{
	"Docket ID", "Ordinance", "Subject", "Stage", "Introduced", "Introduction Meeting",
	"Published (Intro)", "Bulletin Posted", "Hearing", "Amended", "Adopted", "Vote",
	"Published (Final)", "Effective", "Emergency", "Website Posted", "Hearing Too Soon",
}

// ReadSchedule reads date, time, type and optional cycle columns from the
// first sheet. A leading row whose first cell is "date" is treated as a header.
func ReadSchedule(path string) ([]config.ScheduleEntry, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var entries []config.ScheduleEntry
	for i, row := range sheet.Rows {
		if row == nil || len(row.Cells) == 0 {
			continue
		}
		first := strings.TrimSpace(row.Cells[0].String())
		if i == 0 && strings.EqualFold(first, "date") {
			continue
		}
		if first == "" {
			continue
		}
		if len(row.Cells) < 3 {
			return nil, eris.Errorf("xlsx: row %d needs date, time and type", i+1)
		}
		date, err := dateCell(row.Cells[0])
		if err != nil {
			return nil, eris.Wrapf(err, "xlsx: row %d", i+1)
		}
		entry := config.ScheduleEntry{
			Date: date,
			Time: strings.TrimSpace(row.Cells[1].String()),
			Type: strings.TrimSpace(row.Cells[2].String()),
		}
		if len(row.Cells) > 3 && strings.TrimSpace(row.Cells[3].String()) != "" {
			if entry.Cycle, err = dateCell(row.Cells[3]); err != nil {
				return nil, eris.Wrapf(err, "xlsx: row %d cycle", i+1)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// dateCell accepts YYYY-MM-DD text or a native spreadsheet date.
func dateCell(c *xlsx.Cell) (string, error) {
	s := strings.TrimSpace(c.String())
	if _, err := time.Parse(domain.DateLayout, s); err == nil {
		return s, nil
	}
	if c.Type() == xlsx.CellTypeNumeric || c.Type() == xlsx.CellTypeDate {
		if t, err := c.GetTime(false); err == nil {
			return t.Format(domain.DateLayout), nil
		}
	}
	return "", eris.Errorf("invalid date %q", s)
}

// WriteRegister writes one row per ordinance to w.
func WriteRegister(w io.Writer, views []engine.OrdinanceView) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(RegisterSheet)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	addRow(sheet, registerHeader)
	for _, v := range views {
		t := v.Tracking
		addRow(sheet, []string{
			t.DocketID,
			str(t.OrdinanceNumber),
			v.Subject,
			v.Stage,
			str(t.IntroductionDate),
			str(t.IntroductionMeeting),
			str(t.PubIntroDate),
			str(t.BulletinPostedDate),
			str(t.HearingDate),
			yesNo(t.HearingAmended),
			str(t.AdoptionDate),
			str(t.AdoptionVote),
			str(t.PubFinalDate),
			str(t.EffectiveDate),
			yesNo(t.IsEmergency),
			str(t.WebsitePostedDate),
			yesNo(v.HearingTooSoon),
		})
	}
	return eris.Wrap(f.Write(w), "xlsx: write")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
