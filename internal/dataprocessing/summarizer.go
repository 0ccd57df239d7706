package dataprocessing

import (
	"sort"
	"strings"
	"time"

	"sitepulse/internal/config"
	"sitepulse/pkg/contracts/domain"
)

// Summarize aggregates classified inspection items into the metrics
// snapshot stored with the inspection and rendered into reports.
func Summarize(items []domain.InspectionItem, buildingName, inspectionDate, address string) *domain.Metrics {
	m := &domain.Metrics{
		BuildingName:   buildingName,
		InspectionDate: inspectionDate,
		Address:        address,
	}

	unitDefects := map[string]int{}
	unitTypes := map[string]bool{}
	byTrade := map[string]int{}
	byUnit := map[string]int{}
	byRoom := map[string]int{}
	byUnitTrade := map[[2]string]int{}
	byRoomComp := map[[2]string]int{}

	now := time.Now()
	shortCutoff := now.Add(config.PlannedWorkShortWindow)
	longCutoff := now.Add(config.PlannedWorkLongWindow)

	for _, item := range items {
		// Every unit participates in readiness, defects or not.
		if _, seen := unitDefects[item.Unit]; !seen {
			unitDefects[item.Unit] = 0
		}
		if item.UnitType != "" {
			unitTypes[item.UnitType] = true
		}

		// Every melted item counts as an inspection point, blanks
		// included; the defect rate is defects over all points.
		m.TotalInspections++
		if !item.IsDefect() {
			continue
		}

		m.TotalDefects++
		unitDefects[item.Unit]++
		byTrade[tradeOf(item)]++
		byUnit[item.Unit]++
		byRoom[item.Room]++
		byUnitTrade[[2]string{item.Unit, tradeOf(item)}]++
		byRoomComp[[2]string{item.Room, item.Component}]++

		switch item.Urgency {
		case domain.UrgencyUrgent:
			m.UrgentDefects++
			m.UrgentDefectsTable = append(m.UrgentDefectsTable, item)
		case domain.UrgencyHigh:
			m.HighPriorityDefects++
		}

		if item.PlannedCompletion != nil {
			pw := domain.PlannedWork{
				Unit:              item.Unit,
				Room:              item.Room,
				Component:         item.Component,
				Trade:             tradeOf(item),
				Urgency:           item.Urgency,
				PlannedCompletion: *item.PlannedCompletion,
			}
			// The month window starts where the two-week window ends,
			// so each defect lands in exactly one lookahead table.
			switch {
			case !item.PlannedCompletion.After(shortCutoff):
				m.PlannedTwoWeeks = append(m.PlannedTwoWeeks, pw)
			case !item.PlannedCompletion.After(longCutoff):
				m.PlannedMonth = append(m.PlannedMonth, pw)
			}
		}
	}

	m.TotalUnits = len(unitDefects)
	m.UnitTypes = joinSorted(unitTypes)

	if m.TotalInspections > 0 {
		m.DefectRate = float64(m.TotalDefects) / float64(m.TotalInspections) * 100
	}
	if m.TotalUnits > 0 {
		m.AvgDefectsPerUnit = float64(m.TotalDefects) / float64(m.TotalUnits)
	}

	for _, n := range unitDefects {
		switch domain.Bucket(n) {
		case domain.BucketReady:
			m.ReadyUnits++
		case domain.BucketMinorWork:
			m.MinorWorkUnits++
		case domain.BucketMajorWork:
			m.MajorWorkUnits++
		default:
			m.ExtensiveUnits++
		}
	}
	if m.TotalUnits > 0 {
		total := float64(m.TotalUnits)
		m.ReadyPct = float64(m.ReadyUnits) / total * 100
		m.MinorPct = float64(m.MinorWorkUnits) / total * 100
		m.MajorPct = float64(m.MajorWorkUnits) / total * 100
		m.ExtensivePct = float64(m.ExtensiveUnits) / total * 100
	}

	m.SummaryTrade = sortedRows(byTrade)
	m.SummaryUnit = sortedRows(byUnit)
	m.SummaryRoom = sortedRows(byRoom)
	m.SummaryUnitTrade = sortedPairRows(byUnitTrade)
	m.SummaryRoomComp = sortedPairRows(byRoomComp)

	sortPlanned(m.PlannedTwoWeeks)
	sortPlanned(m.PlannedMonth)

	return m
}

func tradeOf(item domain.InspectionItem) string {
	if item.Trade == "" {
		return config.UnknownTrade
	}
	return item.Trade
}

// sortedRows converts a count map to rows sorted by count descending,
// key ascending for ties so report output is stable.
func sortedRows(counts map[string]int) []domain.CountRow {
	rows := make([]domain.CountRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, domain.CountRow{Key: k, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

func sortedPairRows(counts map[[2]string]int) []domain.CountRow {
	rows := make([]domain.CountRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, domain.CountRow{Key: k[0], SecondKey: k[1], Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Key != rows[j].Key {
			return rows[i].Key < rows[j].Key
		}
		return rows[i].SecondKey < rows[j].SecondKey
	})
	return rows
}

func sortPlanned(work []domain.PlannedWork) {
	sort.Slice(work, func(i, j int) bool {
		return work[i].PlannedCompletion.Before(work[j].PlannedCompletion)
	})
}

func joinSorted(set map[string]bool) string {
	vals := make([]string, 0, len(set))
	for v := range set {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	return strings.Join(vals, ", ")
}
