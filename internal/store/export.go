// Package store writes the trajectories of a run for external tools.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/gemsim/internal/sim"
)

type ExportData struct {
	ID       string                 `json:"id"`
	Model    string                 `json:"model"`
	Status   string                 `json:"status"`
	Error    string                 `json:"error,omitempty"`
	Steps    int                    `json:"steps"`
	Filled   int                    `json:"filled"`
	Parallel int                    `json:"parallel"`
	Regions  int                    `json:"regions"`
	Times    []float64              `json:"times"`
	Fields   map[string]FieldExport `json:"fields"`
}

// FieldExport holds one row per filled slice; each row is the slice in
// (parallel, region, row, col) order.
type FieldExport struct {
	Kind   string      `json:"kind"`
	Shape  [4]int      `json:"shape"`
	Units  string      `json:"units,omitempty"`
	Values [][]float64 `json:"values"`
}

// Fields returns names, or every field of inst when names is empty.
func Fields(inst *sim.Instance, names []string) []string {
	if len(names) > 0 {
		return names
	}
	return inst.Model().Registry().Names()
}

func NewExportData(inst *sim.Instance, names []string) (*ExportData, error) {
	filled := inst.Filled()
	data := &ExportData{
		ID:       inst.ID().String(),
		Model:    inst.Model().Name(),
		Status:   inst.Status().String(),
		Steps:    inst.Shape().Steps,
		Filled:   filled,
		Parallel: inst.Shape().Parallel,
		Regions:  inst.Shape().Regions,
		Fields:   make(map[string]FieldExport),
	}
	if err := inst.Err(); err != nil {
		data.Error = err.Error()
	}
	if times := inst.Times(); times != nil {
		data.Times = times[:filled]
	}

	reg := inst.Model().Registry()
	for _, name := range Fields(inst, names) {
		tr, err := inst.Trajectory(name)
		if err != nil {
			return nil, err
		}
		f, _ := reg.Lookup(name)
		fe := FieldExport{
			Kind:   tr.Kind().String(),
			Shape:  [4]int(tr.Shape()),
			Units:  f.Meta().Units,
			Values: make([][]float64, filled),
		}
		for t := 0; t < filled; t++ {
			fe.Values[t] = append([]float64(nil), tr.Slice(t).Data()...)
		}
		data.Fields[name] = fe
	}
	return data, nil
}

func ExportJSON(w io.Writer, inst *sim.Instance, names []string) error {
	data, err := NewExportData(inst, names)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes a time column "t" and one column per element of each
// field, over the filled slices.
func ExportCSV(w io.Writer, inst *sim.Instance, names []string) error {
	names = Fields(inst, names)
	cw := csv.NewWriter(w)

	var trs []*sim.Trajectory
	header := []string{"t"}
	for _, name := range names {
		tr, err := inst.Trajectory(name)
		if err != nil {
			return err
		}
		trs = append(trs, tr)
		header = append(header, Columns(inst, name)...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	times := inst.Times()
	for t := 0; t < inst.Filled(); t++ {
		row := []string{strconv.FormatFloat(times[t], 'g', -1, 64)}
		for _, tr := range trs {
			for _, v := range tr.Slice(t).Data() {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Columns labels every element of a field in storage order. Sized axes use
// the labels of their dimension groups; parallel and region indices
// appear only when the run has more than one.
func Columns(inst *sim.Instance, name string) []string {
	tr, err := inst.Trajectory(name)
	if err != nil {
		return nil
	}
	s := tr.Shape()
	reg := inst.Model().Registry()

	var groups [][]string
	if f, ok := reg.Lookup(name); ok {
		for _, g := range f.Size() {
			if sg, ok := reg.SizeGroup(g); ok {
				groups = append(groups, sg.Labels)
			}
		}
	}
	label := func(axis, i int) string {
		if axis < len(groups) && i < len(groups[axis]) {
			return groups[axis][i]
		}
		return strconv.Itoa(i)
	}

	var cols []string
	for p := 0; p < s[0]; p++ {
		for r := 0; r < s[1]; r++ {
			for i := 0; i < s[2]; i++ {
				for j := 0; j < s[3]; j++ {
					var b strings.Builder
					b.WriteString(name)
					var idx []string
					if s[2] > 1 {
						idx = append(idx, label(0, i))
					}
					if s[3] > 1 {
						idx = append(idx, label(len(idx), j))
					}
					if len(idx) > 0 {
						fmt.Fprintf(&b, "[%s]", strings.Join(idx, ","))
					}
					if s[1] > 1 {
						fmt.Fprintf(&b, "@%d", r)
					}
					if s[0] > 1 {
						fmt.Fprintf(&b, "#%d", p)
					}
					cols = append(cols, b.String())
				}
			}
		}
	}
	return cols
}
