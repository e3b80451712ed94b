package table

// selection.go tracks selected rows.
//
// Rows are identified by their DataKey value when the config sets one and by
// reference otherwise. "Select all" only ever touches the rows on the current
// filtered page.

// Selection returns a copy of the selected rows.
func (e *Engine) Selection() []any {
	out := make([]any, len(e.selection))
	copy(out, e.selection)
	return out
}

// SelectedCount is the number of selected rows.
func (e *Engine) SelectedCount() int { return len(e.selection) }

// IsSelected reports whether row is selected.
func (e *Engine) IsSelected(row any) bool {
	if isNilRow(row) {
		return false
	}
	if e.cfg.DataKey != "" {
		key, ok := keyOf(row, e.cfg.DataKey)
		if !ok {
			return false
		}
		_, sel := e.selKeys[key]
		return sel
	}
	for _, s := range e.selection {
		if sameRow(s, row) {
			return true
		}
	}
	return false
}

// SetSelection replaces the selection from the host side. Rows that are not in
// the applied data are ignored. Listeners are not notified.
func (e *Engine) SetSelection(rows []any) {
	e.selection = append(e.selection[:0:0], rows...)
	e.reconcileSelection()
}

// ToggleRow flips the selection of the visible row i.
func (e *Engine) ToggleRow(i int) error {
	if !e.cfg.Selection {
		return ErrSelectionDisabled
	}
	_, row, err := e.visibleRow(i)
	if err != nil {
		return err
	}
	if !e.selectable(row) {
		return ErrRowNotSelectable
	}
	if e.IsSelected(row) {
		e.remove(row)
	} else {
		e.add(row)
	}
	e.fireSelection()
	return nil
}

// SetAllVisibleSelected selects or clears every selectable row on the current
// page. Rows on other pages or hidden by filters keep their state.
func (e *Engine) SetAllVisibleSelected(checked bool) error {
	if !e.cfg.Selection {
		return ErrSelectionDisabled
	}
	changed := false
	for _, idx := range e.pageIndices() {
		row := e.cfg.Data[idx]
		if !e.selectable(row) {
			continue
		}
		switch sel := e.IsSelected(row); {
		case checked && !sel:
			e.add(row)
			changed = true
		case !checked && sel:
			e.remove(row)
			changed = true
		}
	}
	if changed {
		e.fireSelection()
	}
	return nil
}

// ToggleAllVisible clears the page when it is fully selected and selects it otherwise.
func (e *Engine) ToggleAllVisible() error {
	return e.SetAllVisibleSelected(!e.AllVisibleSelected())
}

// AllVisibleSelected reports whether every selectable row on the page is selected.
func (e *Engine) AllVisibleSelected() bool {
	selected, total := e.visibleCounts()
	return total > 0 && selected == total
}

// Indeterminate reports whether some, but not all, selectable rows on the
// page are selected.
func (e *Engine) Indeterminate() bool {
	selected, total := e.visibleCounts()
	return selected > 0 && selected < total
}

func (e *Engine) visibleCounts() (selected, total int) {
	for _, idx := range e.pageIndices() {
		row := e.cfg.Data[idx]
		if !e.selectable(row) {
			continue
		}
		total++
		if e.IsSelected(row) {
			selected++
		}
	}
	return selected, total
}

func (e *Engine) selectable(row any) bool {
	if isNilRow(row) {
		return false
	}
	if e.cfg.DataKey != "" {
		if _, ok := keyOf(row, e.cfg.DataKey); !ok {
			return false
		}
	}
	return e.cfg.RowSelectable == nil || e.cfg.RowSelectable.Test(row)
}

func (e *Engine) add(row any) {
	e.selection = append(e.selection, row)
	if e.cfg.DataKey != "" {
		if key, ok := keyOf(row, e.cfg.DataKey); ok {
			e.selKeys[key] = struct{}{}
		}
	}
}

func (e *Engine) remove(row any) {
	out := e.selection[:0]
	for _, s := range e.selection {
		if !e.sameSelected(s, row) {
			out = append(out, s)
		}
	}
	clear(e.selection[len(out):])
	e.selection = out
	if e.cfg.DataKey != "" {
		if key, ok := keyOf(row, e.cfg.DataKey); ok {
			delete(e.selKeys, key)
		}
	}
}

func (e *Engine) sameSelected(a, b any) bool {
	if e.cfg.DataKey != "" {
		ka, okA := keyOf(a, e.cfg.DataKey)
		kb, okB := keyOf(b, e.cfg.DataKey)
		return okA && okB && ka == kb
	}
	return sameRow(a, b)
}

// reconcileSelection maps the selection onto the applied data. With a
// DataKey each selected entry is replaced by the current row carrying that
// key; without one only rows still present by reference survive. Duplicates
// and rows that are gone are dropped.
func (e *Engine) reconcileSelection() {
	e.selKeys = make(map[string]struct{})
	if len(e.selection) == 0 {
		return
	}
	data := e.cfg.Data

	var kept []any
	if e.cfg.DataKey != "" {
		byKey := make(map[string]any, len(data))
		for _, row := range data {
			if isNilRow(row) {
				continue
			}
			if key, ok := keyOf(row, e.cfg.DataKey); ok {
				if _, dup := byKey[key]; !dup {
					byKey[key] = row
				}
			}
		}
		for _, s := range e.selection {
			key, ok := keyOf(s, e.cfg.DataKey)
			if !ok {
				continue
			}
			row, present := byKey[key]
			if !present {
				continue
			}
			if _, dup := e.selKeys[key]; dup {
				continue
			}
			e.selKeys[key] = struct{}{}
			kept = append(kept, row)
		}
	} else {
		for _, s := range e.selection {
			if isNilRow(s) {
				continue
			}
			present := false
			for _, row := range data {
				if sameRow(s, row) {
					present = true
					break
				}
			}
			if !present {
				continue
			}
			dup := false
			for _, k := range kept {
				if sameRow(k, s) {
					dup = true
					break
				}
			}
			if !dup {
				kept = append(kept, s)
			}
		}
	}
	e.selection = kept
}

func (e *Engine) fireSelection() {
	if len(e.onSelect) == 0 {
		return
	}
	rows := e.Selection()
	for _, l := range e.onSelect {
		l.SelectionChanged(rows)
	}
}
