package output

import (
	"encoding/json"
	"fmt"

	"github.com/jfarrand/diskwright/internal/history"
	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// FormatPVs formats physical volumes as a JSON array.
func (f *JSONFormatter) FormatPVs(pvs []*lvm.PVInfo) (string, error) {
	if len(pvs) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(pvs)
}

// FormatVGs formats volume groups as a JSON array.
func (f *JSONFormatter) FormatVGs(vgs []*lvm.VGInfo) (string, error) {
	if len(vgs) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(vgs)
}

// FormatLVs formats logical volumes as a JSON array.
func (f *JSONFormatter) FormatLVs(lvs []*lvm.LVInfo) (string, error) {
	if len(lvs) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(lvs)
}

// FormatStates formats backend load states as a JSON object keyed by kind.
func (f *JSONFormatter) FormatStates(states map[backend.Kind]registry.LoadState) (string, error) {
	view := make(map[string]stateView, len(states))
	for kind, state := range states {
		view[string(kind)] = newStateView(state)
	}
	return marshalJSON(view)
}

// FormatHistory formats journal entries as a JSON array.
func (f *JSONFormatter) FormatHistory(entries []history.Entry) (string, error) {
	if len(entries) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(entries)
}

// stateView is the serializable form of a load state; errors become their
// message strings.
type stateView struct {
	Status    string   `json:"status" yaml:"status"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Functions []string `json:"functions,omitempty" yaml:"functions,omitempty"`
}

func newStateView(state registry.LoadState) stateView {
	v := stateView{Status: string(state.Status)}
	if state.Err != nil {
		v.Error = state.Err.Error()
	}
	for _, fn := range state.Functions {
		v.Functions = append(v.Functions, string(fn))
	}
	return v
}
