package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/pkg/contracts/domain"
)

func defect(unit, room, component, trade string, urgency domain.Urgency) domain.InspectionItem {
	return domain.InspectionItem{
		Unit: unit, Room: room, Component: component, Trade: trade,
		StatusClass: domain.StatusNotOK, Urgency: urgency,
	}
}

func okItem(unit, room, component string) domain.InspectionItem {
	return domain.InspectionItem{
		Unit: unit, Room: room, Component: component, Trade: "Painter",
		StatusClass: domain.StatusOK, Urgency: domain.UrgencyNormal,
	}
}

func TestSummarizeBucketsAndTotals(t *testing.T) {
	var items []domain.InspectionItem

	// Unit 101: zero defects, still counted as ready.
	items = append(items, okItem("101", "Kitchen", "Benchtop"), okItem("101", "Entry", "Door"))

	// Unit 102: 3 defects (minor work).
	for i, comp := range []string{"Walls", "Ceiling", "Skirting"} {
		_ = i
		items = append(items, defect("102", "Bedroom", comp, "Painter", domain.UrgencyNormal))
	}

	// Unit 103: 8 defects (major work), one urgent.
	items = append(items, defect("103", "Bathroom", "Tiles", "Tiler", domain.UrgencyUrgent))
	for _, comp := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		items = append(items, defect("103", "Living", comp, "Carpenter", domain.UrgencyNormal))
	}

	m := Summarize(items, "Tower A", "12-08-2026", "1 River St")

	assert.Equal(t, "Tower A", m.BuildingName)
	assert.Equal(t, 3, m.TotalUnits)
	assert.Equal(t, 11, m.TotalDefects)
	assert.Equal(t, 13, m.TotalInspections)
	assert.Equal(t, 1, m.UrgentDefects)
	require.Len(t, m.UrgentDefectsTable, 1)
	assert.Equal(t, "103", m.UrgentDefectsTable[0].Unit)
	assert.Equal(t, 0, m.HighPriorityDefects)

	assert.Equal(t, 1, m.ReadyUnits)
	assert.Equal(t, 1, m.MinorWorkUnits)
	assert.Equal(t, 1, m.MajorWorkUnits)
	assert.Equal(t, 0, m.ExtensiveUnits)
	assert.InDelta(t, 33.33, m.ReadyPct, 0.01)

	assert.InDelta(t, float64(11)/float64(13)*100, m.DefectRate, 0.001)
	assert.InDelta(t, float64(11)/3, m.AvgDefectsPerUnit, 0.001)
}

func TestSummarizeBucketBoundaries(t *testing.T) {
	mkUnit := func(unit string, defects int) []domain.InspectionItem {
		var items []domain.InspectionItem
		for i := 0; i < defects; i++ {
			items = append(items, defect(unit, "Room", string(rune('A'+i)), "T", domain.UrgencyNormal))
		}
		if defects == 0 {
			items = append(items, okItem(unit, "Room", "A"))
		}
		return items
	}

	var items []domain.InspectionItem
	items = append(items, mkUnit("u0", 0)...)
	items = append(items, mkUnit("u2", 2)...)   // top of ready
	items = append(items, mkUnit("u3", 3)...)   // bottom of minor
	items = append(items, mkUnit("u7", 7)...)   // top of minor
	items = append(items, mkUnit("u8", 8)...)   // bottom of major
	items = append(items, mkUnit("u15", 15)...) // top of major
	items = append(items, mkUnit("u16", 16)...) // extensive

	m := Summarize(items, "B", "", "")
	assert.Equal(t, 2, m.ReadyUnits)
	assert.Equal(t, 2, m.MinorWorkUnits)
	assert.Equal(t, 2, m.MajorWorkUnits)
	assert.Equal(t, 1, m.ExtensiveUnits)
}

func TestSummarizeSortsSummariesDescending(t *testing.T) {
	items := []domain.InspectionItem{
		defect("101", "Kitchen", "Benchtop", "Stone Mason", domain.UrgencyNormal),
		defect("101", "Bedroom", "Walls", "Painter", domain.UrgencyNormal),
		defect("102", "Bedroom", "Walls", "Painter", domain.UrgencyNormal),
		defect("103", "Bedroom", "Ceiling", "Painter", domain.UrgencyNormal),
	}

	m := Summarize(items, "B", "", "")

	require.NotEmpty(t, m.SummaryTrade)
	assert.Equal(t, "Painter", m.SummaryTrade[0].Key)
	assert.Equal(t, 3, m.SummaryTrade[0].Count)

	require.NotEmpty(t, m.SummaryRoom)
	assert.Equal(t, "Bedroom", m.SummaryRoom[0].Key)

	require.NotEmpty(t, m.SummaryRoomComp)
	assert.Equal(t, "Bedroom", m.SummaryRoomComp[0].Key)
	assert.Equal(t, "Walls", m.SummaryRoomComp[0].SecondKey)
	assert.Equal(t, 2, m.SummaryRoomComp[0].Count)
}

func TestSummarizePlannedWorkWindows(t *testing.T) {
	soon := time.Now().Add(7 * 24 * time.Hour)
	later := time.Now().Add(21 * 24 * time.Hour)
	farOut := time.Now().Add(60 * 24 * time.Hour)

	withDate := func(item domain.InspectionItem, at time.Time) domain.InspectionItem {
		item.PlannedCompletion = &at
		return item
	}

	items := []domain.InspectionItem{
		withDate(defect("101", "Kitchen", "Sink", "Plumber", domain.UrgencyNormal), soon),
		withDate(defect("102", "Bathroom", "Tiles", "Tiler", domain.UrgencyNormal), later),
		withDate(defect("103", "Living", "Floor", "Flooring", domain.UrgencyNormal), farOut),
	}

	m := Summarize(items, "B", "", "")

	require.Len(t, m.PlannedTwoWeeks, 1)
	assert.Equal(t, "101", m.PlannedTwoWeeks[0].Unit)

	// The month table excludes the two-week entries and anything past
	// thirty days.
	require.Len(t, m.PlannedMonth, 1)
	assert.Equal(t, "102", m.PlannedMonth[0].Unit)
}

func TestSummarizeCountsBlankPoints(t *testing.T) {
	items := []domain.InspectionItem{
		defect("101", "Kitchen", "Benchtop", "Stone Mason", domain.UrgencyNormal),
		okItem("101", "Entry", "Door"),
		{Unit: "101", Room: "Bedroom", Component: "Walls", StatusClass: domain.StatusBlank},
	}

	m := Summarize(items, "B", "", "")

	// Blank points still dilute the defect rate.
	assert.Equal(t, 3, m.TotalInspections)
	assert.Equal(t, 1, m.TotalDefects)
	assert.InDelta(t, float64(1)/float64(3)*100, m.DefectRate, 0.001)
}

func TestSummarizeCountsHighPriority(t *testing.T) {
	items := []domain.InspectionItem{
		defect("101", "Entry", "Door", "Carpenter", domain.UrgencyHigh),
		defect("101", "Kitchen", "Stovetop", "Appliance Tech", domain.UrgencyHigh),
		defect("102", "Bathroom", "Tiles", "Tiler", domain.UrgencyUrgent),
		defect("102", "Bedroom", "Walls", "Painter", domain.UrgencyNormal),
	}

	m := Summarize(items, "B", "", "")

	assert.Equal(t, 1, m.UrgentDefects)
	assert.Equal(t, 2, m.HighPriorityDefects)
}

func TestApplyMappings(t *testing.T) {
	items := []domain.InspectionItem{
		{Unit: "101", Room: "Kitchen", Component: "Benchtop", StatusClass: domain.StatusNotOK},
		{Unit: "101", Room: "Balcony", Component: "Decking", StatusClass: domain.StatusNotOK},
	}
	mappings := []domain.TradeMapping{
		{Room: "Kitchen", Component: "Benchtop", Trade: "Stone Mason"},
	}

	ApplyMappings(items, mappings)

	assert.Equal(t, "Stone Mason", items[0].Trade)
	assert.Equal(t, "Unknown Trade", items[1].Trade)
}

func TestApplyMappingsIgnoresCase(t *testing.T) {
	items := []domain.InspectionItem{
		{Unit: "101", Room: "kitchen", Component: "BENCHTOP", StatusClass: domain.StatusNotOK},
	}
	mappings := []domain.TradeMapping{
		{Room: "Kitchen ", Component: "Benchtop", Trade: "Stone Mason"},
	}

	ApplyMappings(items, mappings)
	assert.Equal(t, "Stone Mason", items[0].Trade)
}

func TestPlanCompletionLeadTimes(t *testing.T) {
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, base.AddDate(0, 0, 3), PlanCompletion(domain.UrgencyUrgent, base))
	assert.Equal(t, base.AddDate(0, 0, 7), PlanCompletion(domain.UrgencyHigh, base))
	assert.Equal(t, base.AddDate(0, 0, 14), PlanCompletion(domain.UrgencyNormal, base))
}

func TestProcessorEndToEnd(t *testing.T) {
	p := NewProcessor(testLogger())
	mappings := []domain.TradeMapping{
		{Room: "Kitchen", Component: "Benchtop", Trade: "Stone Mason"},
		{Room: "Kitchen", Component: "Oven", Trade: "Appliance Tech"},
		{Room: "Entry", Component: "Door", Trade: "Carpenter"},
		{Room: "Bedroom", Component: "Walls", Trade: "Painter"},
	}

	processed, err := p.Process(newSampleReader(), mappings, "")
	require.NoError(t, err)

	assert.Equal(t, "Tower A", processed.BuildingName)
	require.NotNil(t, processed.Metrics)
	assert.Equal(t, 2, processed.Metrics.TotalUnits)
	assert.Positive(t, processed.Metrics.TotalDefects)

	// Every item leaves processing with a trade and a scheduled
	// remediation date; urgent and high-priority work lands in the
	// two-week lookahead.
	for _, item := range processed.Items {
		assert.NotEmpty(t, item.Trade)
		require.NotNil(t, item.PlannedCompletion)
		assert.False(t, item.PlannedCompletion.After(time.Now().AddDate(0, 0, 14)))
		if item.IsDefect() {
			found := false
			for _, pw := range append(processed.Metrics.PlannedTwoWeeks, processed.Metrics.PlannedMonth...) {
				if pw.Unit == item.Unit && pw.Room == item.Room && pw.Component == item.Component {
					found = true
					break
				}
			}
			assert.True(t, found, "defect %s/%s/%s missing from lookahead", item.Unit, item.Room, item.Component)
		}
	}

	// Explicit building name wins over the derived one.
	processed, err = p.Process(newSampleReader(), mappings, "Override Tower")
	require.NoError(t, err)
	assert.Equal(t, "Override Tower", processed.BuildingName)
}
