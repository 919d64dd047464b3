package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jfarrand/diskwright/internal/history"
	"github.com/jfarrand/diskwright/internal/lvm"
	"github.com/jfarrand/diskwright/internal/registry"
	"github.com/jfarrand/diskwright/pkg/backend"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal to YAML: %w", err)
	}
	return string(data), nil
}

// FormatPVs formats physical volumes as YAML.
func (f *YAMLFormatter) FormatPVs(pvs []*lvm.PVInfo) (string, error) {
	return marshalYAML(pvs)
}

// FormatVGs formats volume groups as YAML.
func (f *YAMLFormatter) FormatVGs(vgs []*lvm.VGInfo) (string, error) {
	return marshalYAML(vgs)
}

// FormatLVs formats logical volumes as YAML.
func (f *YAMLFormatter) FormatLVs(lvs []*lvm.LVInfo) (string, error) {
	return marshalYAML(lvs)
}

// FormatStates formats backend load states as YAML keyed by kind.
func (f *YAMLFormatter) FormatStates(states map[backend.Kind]registry.LoadState) (string, error) {
	view := make(map[string]stateView, len(states))
	for kind, state := range states {
		view[string(kind)] = newStateView(state)
	}
	return marshalYAML(view)
}

// FormatHistory formats journal entries as YAML.
func (f *YAMLFormatter) FormatHistory(entries []history.Entry) (string, error) {
	return marshalYAML(entries)
}
