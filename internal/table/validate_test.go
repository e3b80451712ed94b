package table

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{name: "valid", cfg: busConfig(busData())},
		{name: "no columns", cfg: &Config{}, wantErr: "Config.Columns failed required"},
		{name: "missing field", cfg: &Config{Columns: []Column{{Header: "x"}}}, wantErr: "Field failed required_without"},
		{name: "action column without field", cfg: &Config{Columns: []Column{{Header: "x", IsAction: true}}}},
		{name: "bad type", cfg: &Config{Columns: []Column{{Field: "a", Type: "money"}}}, wantErr: "Type failed oneof"},
		{name: "bad locale", cfg: &Config{Columns: []Column{{Field: "a", Locale: "not a tag"}}}, wantErr: "Locale failed bcp47_language_tag"},
		{name: "duplicate field", cfg: &Config{Columns: []Column{{Field: "a"}, {Field: "a"}}}, wantErr: `duplicate column field "a"`},
		{name: "unnamed action", cfg: &Config{Columns: []Column{{Field: "a"}}, Actions: []RowAction{{Icon: "pi"}}}, wantErr: "Name failed required"},
		{name: "duplicate action", cfg: &Config{Columns: []Column{{Field: "a"}}, Actions: []RowAction{{Name: "x"}, {Name: "x"}}}, wantErr: `duplicate action "x"`},
		{name: "rows per page outside options", cfg: &Config{Columns: []Column{{Field: "a"}}, RowsPerPage: 3, RowsPerPageOptions: []int{5, 10}}, wantErr: "not in rowsPerPageOptions"},
		{name: "non positive option", cfg: &Config{Columns: []Column{{Field: "a"}}, RowsPerPageOptions: []int{0}}, wantErr: "failed gt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
