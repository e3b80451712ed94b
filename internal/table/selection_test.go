package table

import (
	"errors"
	"testing"
)

func TestSelectAll_OnlyTargetsFilteredRows(t *testing.T) {
	e := newEngine(t, busConfig(busData()))

	_ = e.SetColumnFilter("status", "ACTIVE")
	if err := e.SetAllVisibleSelected(true); err != nil {
		t.Fatalf("SetAllVisibleSelected: %v", err)
	}
	e.ClearFilters()

	assertIDs(t, "selection", e.Selection(), 1, 3, 5)
	for _, row := range e.Visible() {
		want := Resolve(row, "status") == "ACTIVE"
		if got := e.IsSelected(row); got != want {
			t.Errorf("IsSelected(id %v) = %v, want %v", Resolve(row, "id"), got, want)
		}
	}
	if !e.Indeterminate() {
		t.Error("3 of 5 selected should be indeterminate")
	}
}

func TestSelectAll_OnlyTargetsCurrentPage(t *testing.T) {
	e := newEngine(t, busConfig(busData(), func(c *Config) { c.RowsPerPage = 2 }))
	e.SetPage(2)

	if err := e.ToggleAllVisible(); err != nil {
		t.Fatalf("ToggleAllVisible: %v", err)
	}
	assertIDs(t, "selection", e.Selection(), 3, 4)
	if !e.AllVisibleSelected() {
		t.Error("page should report all selected")
	}

	if err := e.ToggleAllVisible(); err != nil {
		t.Fatalf("ToggleAllVisible: %v", err)
	}
	if e.SelectedCount() != 0 {
		t.Errorf("SelectedCount = %d, want 0", e.SelectedCount())
	}
}

func TestIndeterminate(t *testing.T) {
	e := newEngine(t, busConfig(busData()))

	if e.Indeterminate() || e.AllVisibleSelected() {
		t.Error("nothing selected: neither indeterminate nor all")
	}

	_ = e.ToggleRow(0)
	if !e.Indeterminate() {
		t.Error("one selected should be indeterminate")
	}

	_ = e.SetAllVisibleSelected(true)
	if e.Indeterminate() || !e.AllVisibleSelected() {
		t.Error("all selected: all but not indeterminate")
	}

	_ = e.SetGlobalFilter("nothing matches")
	if e.Indeterminate() || e.AllVisibleSelected() {
		t.Error("empty page: neither indeterminate nor all")
	}
}

func TestSelection_NilRowsExcluded(t *testing.T) {
	data := []any{busData()[0], nil, busData()[1]}
	e := newEngine(t, busConfig(data))

	_ = e.SetAllVisibleSelected(true)
	if e.SelectedCount() != 2 {
		t.Errorf("SelectedCount = %d, want 2", e.SelectedCount())
	}
	if !e.AllVisibleSelected() {
		t.Error("nil rows must not hold back AllVisibleSelected")
	}
	if e.IsSelected(nil) {
		t.Error("nil is never selected")
	}
}

func TestSelection_RowSelectable(t *testing.T) {
	cfg := busConfig(busData(), func(c *Config) {
		c.RowSelectable = RowPredicateFunc(func(row any) bool { return Resolve(row, "status") != "RETIRED" })
	})
	e := newEngine(t, cfg)

	if err := e.ToggleRow(3); !errors.Is(err, ErrRowNotSelectable) {
		t.Errorf("ToggleRow(retired) error = %v, want ErrRowNotSelectable", err)
	}
	_ = e.SetAllVisibleSelected(true)
	assertIDs(t, "selection", e.Selection(), 1, 2, 3, 5)
	if !e.AllVisibleSelected() {
		t.Error("unselectable rows must not hold back AllVisibleSelected")
	}
	if e.Page().Rows[3].Selectable {
		t.Error("retired row should render unselectable")
	}
}

func TestSelection_Disabled(t *testing.T) {
	e := newEngine(t, busConfig(busData(), func(c *Config) { c.Selection = false }))
	if err := e.ToggleRow(0); !errors.Is(err, ErrSelectionDisabled) {
		t.Errorf("ToggleRow error = %v, want ErrSelectionDisabled", err)
	}
	if err := e.SetAllVisibleSelected(true); !errors.Is(err, ErrSelectionDisabled) {
		t.Errorf("SetAllVisibleSelected error = %v, want ErrSelectionDisabled", err)
	}
}

func TestSelection_Listener(t *testing.T) {
	var events [][]any
	e := newEngine(t, busConfig(busData()), WithSelectionListener(SelectionFunc(func(rows []any) {
		events = append(events, rows)
	})))

	_ = e.ToggleRow(0)
	_ = e.ToggleRow(0)
	_ = e.SetAllVisibleSelected(false) // no change, no event
	_ = e.SetAllVisibleSelected(true)

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	assertIDs(t, "first event", events[0], 1)
	assertIDs(t, "second event", events[1])
	assertIDs(t, "third event", events[2], 1, 2, 3, 4, 5)

	// listeners get a copy
	events[2][0] = nil
	if e.Selection()[0] == nil {
		t.Error("listener mutation leaked into engine selection")
	}
}

func TestSetSelection(t *testing.T) {
	data := busData()
	e := newEngine(t, busConfig(data))

	stranger := bus(99, "ZZZ-999", 10, "ACTIVE", "2024-01-01", "Zoe")
	copyOfTwo := bus(2, "ABD-202", 55, "MAINTENANCE", "2024-03-16", "Bruno")
	e.SetSelection([]any{data[0], stranger, copyOfTwo, data[0], nil})

	assertIDs(t, "selection", e.Selection(), 1, 2)
	if !sameRow(e.Selection()[1], data[1]) {
		t.Error("keyed selection should resolve to the applied row object")
	}
}
