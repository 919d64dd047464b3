package output

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/jfarrand/diskwright/internal/history"
	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

func (f *TableFormatter) table(header string, rows func(w *tabwriter.Writer)) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, header)
	}
	rows(w)
	_ = w.Flush()

	return buf.String(), nil
}

// FormatPVs formats physical volumes as a table.
func (f *TableFormatter) FormatPVs(pvs []*lvm.PVInfo) (string, error) {
	if len(pvs) == 0 {
		return "No physical volumes found\n", nil
	}
	return f.table("PV\tVG\tVG SIZE\tVG FREE\tPE START", func(w *tabwriter.Writer) {
		for _, pv := range pvs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				pv.PVName, orDash(pv.VGName),
				formatSize(pv.VGSize), formatSize(pv.VGFree), pv.PEStart)
		}
	})
}

// FormatVGs formats volume groups as a table.
func (f *TableFormatter) FormatVGs(vgs []*lvm.VGInfo) (string, error) {
	if len(vgs) == 0 {
		return "No volume groups found\n", nil
	}
	return f.table("VG\tSIZE\tFREE\tEXTENT SIZE\tPVS", func(w *tabwriter.Writer) {
		for _, vg := range vgs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
				vg.Name, formatSize(vg.Size), formatSize(vg.Free),
				formatSize(vg.ExtentSize), vg.PVCount)
		}
	})
}

// FormatLVs formats logical volumes as a table.
func (f *TableFormatter) FormatLVs(lvs []*lvm.LVInfo) (string, error) {
	if len(lvs) == 0 {
		return "No logical volumes found\n", nil
	}
	return f.table("LV\tVG\tSIZE\tTYPE\tATTR", func(w *tabwriter.Writer) {
		for _, lv := range lvs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				lv.LVName, lv.VGName, formatSize(lv.Size),
				orDash(lv.SegType), orDash(lv.Attr))
		}
	})
}

// FormatStates formats backend load states as a table, in kind order.
func (f *TableFormatter) FormatStates(states map[backend.Kind]registry.LoadState) (string, error) {
	kinds := make([]backend.Kind, 0, len(states))
	for kind := range states {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return f.table("BACKEND\tSTATUS\tFUNCTIONS\tERROR", func(w *tabwriter.Writer) {
		for _, kind := range kinds {
			state := states[kind]
			errMsg := "-"
			if state.Err != nil {
				errMsg = state.Err.Error()
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				kind, state.Status, len(state.Functions), errMsg)
		}
	})
}

// FormatHistory formats journal entries as a table.
func (f *TableFormatter) FormatHistory(entries []history.Entry) (string, error) {
	if len(entries) == 0 {
		return "No invocations journaled\n", nil
	}
	return f.table("STARTED\tCOMMAND\tEXIT\tDURATION", func(w *tabwriter.Writer) {
		for _, e := range entries {
			cmd := "-"
			if len(e.Argv) > 0 {
				cmd = e.Argv[0]
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.3fs\n",
				e.Started.Format("2006-01-02 15:04:05"), cmd, e.ExitCode, e.Duration)
		}
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatSize renders a byte count with an IEC suffix, trimming to one
// decimal place.
func formatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
