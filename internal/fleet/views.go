package fleet

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/fleetdesk/internal/table"
)

//go:embed views/*.yaml
var embeddedViews embed.FS

var validate = validator.New(validator.WithRequiredStructEnabled())

// View is the declarative part of a screen: its columns, row actions and
// table switches. Views are read from YAML.
type View struct {
	Screen string `yaml:"screen" validate:"required"`
	Title  string `yaml:"title" validate:"required"`

	DataKey            string   `yaml:"dataKey"`
	Selection          bool     `yaml:"selection"`
	GlobalFilter       bool     `yaml:"globalFilter"`
	GlobalFilterFields []string `yaml:"globalFilterFields"`
	ColumnFilters      bool     `yaml:"columnFilters"`
	ManualFiltering    bool     `yaml:"manualFiltering"`
	RowsPerPage        int      `yaml:"rowsPerPage" validate:"gte=0"`
	RowsPerPageOptions []int    `yaml:"rowsPerPageOptions" validate:"dive,gt=0"`
	PageReportTemplate string   `yaml:"pageReportTemplate"`

	Columns []table.Column    `yaml:"columns" validate:"required,min=1,dive"`
	Actions []table.RowAction `yaml:"actions" validate:"dive"`
}

// ViewFS returns the embedded layouts, or dir when it is set.
func ViewFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	sub, err := fs.Sub(embeddedViews, "views")
	if err != nil {
		panic(fmt.Sprintf("embedded views: %v", err))
	}
	return sub
}

// LoadViews reads every *.yaml file at the root of fsys.
// All files are checked; the error lists every broken one.
func LoadViews(fsys fs.FS) (map[string]View, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	if len(names) == 0 {
		return nil, errors.New("no *.yaml views found")
	}

	views := make(map[string]View, len(names))
	var errs []error
	for _, name := range names {
		v, err := readView(fsys, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if _, dup := views[v.Screen]; dup {
			errs = append(errs, fmt.Errorf("%s: screen %q already has a view", name, v.Screen))
			continue
		}
		views[v.Screen] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return views, nil
}

func readView(fsys fs.FS, name string) (View, error) {
	data, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		return View{}, err
	}

	var v View
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return View{}, fmt.Errorf("decode: %w", err)
	}

	if err := validate.Struct(v); err != nil {
		return View{}, fmt.Errorf("validate: %w", err)
	}
	probe := v.config(nil)
	if err := probe.Validate(); err != nil {
		return View{}, err
	}
	return v, nil
}

// config builds a table config over rows from the view alone.
func (v View) config(rows []any) *table.Config {
	return &table.Config{
		Columns:            v.Columns,
		Actions:            append([]table.RowAction(nil), v.Actions...),
		Data:               rows,
		RowsPerPage:        v.RowsPerPage,
		RowsPerPageOptions: v.RowsPerPageOptions,
		GlobalFilter:       v.GlobalFilter,
		ColumnFilters:      v.ColumnFilters,
		GlobalFilterFields: v.GlobalFilterFields,
		ManualFiltering:    v.ManualFiltering,
		Selection:          v.Selection,
		DataKey:            v.DataKey,
		PageReportTemplate: v.PageReportTemplate,
	}
}

// Setup loads the layouts from dir, or the embedded ones when dir is empty,
// and attaches them to the registered screens.
func Setup(dir string) error {
	views, err := LoadViews(ViewFS(dir))
	if err != nil {
		return fmt.Errorf("load views: %w", err)
	}
	return AttachViews(views)
}
