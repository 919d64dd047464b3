package btrfs

import (
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

// DeviceInfo describes one device of a btrfs volume. Sizes are in bytes.
type DeviceInfo struct {
	ID   uint64 `json:"id"`
	Path string `json:"path"`
	Size uint64 `json:"size"`
	Used uint64 `json:"used"`
}

// SubvolumeInfo describes one subvolume of a btrfs volume.
type SubvolumeInfo struct {
	ID       uint64 `json:"id"`
	ParentID uint64 `json:"parent_id"`
	Path     string `json:"path"`
}

// FilesystemInfo describes a btrfs volume's filesystem. Used is in bytes.
type FilesystemInfo struct {
	Label      string `json:"label"`
	UUID       string `json:"uuid"`
	NumDevices uint64 `json:"num_devices"`
	Used       uint64 `json:"used"`
}

// The btrfs tools have no machine-readable report mode; the human output is
// stable enough to extract fields from.
var (
	deviceRE = regexp.MustCompile(`devid[ \t]+(?P<id>\d+)[ \t]+` +
		`size[ \t]+(?P<size>\S+)[ \t]+` +
		`used[ \t]+(?P<used>\S+)[ \t]+` +
		`path[ \t]+(?P<path>\S+)`)

	// cgen and otime only appear on some kernel/progs combinations
	subvolRE = regexp.MustCompile(`ID\s+(?P<id>\d+)\s+gen\s+\d+\s+(cgen\s+\d+\s+)?` +
		`parent\s+(?P<parent_id>\d+)\s+top\s+level\s+\d+\s+` +
		`(otime\s+\d{4}-\d{2}-\d{2}\s+\d\d:\d\d:\d\d\s+)?` +
		`path\s+(?P<path>\S+)`)

	filesystemRE = regexp.MustCompile(`Label:\s+'(?P<label>\S+)'\s+` +
		`uuid:\s+(?P<uuid>\S+)\s+` +
		`Total\sdevices\s+(?P<num_devices>\d+)\s+` +
		`FS\sbytes\sused\s+(?P<used>\S+)`)

	defaultSubvolRE = regexp.MustCompile(`ID (\d+) .*`)

	sizeSpecRE = regexp.MustCompile(`^(?P<value>[0-9]+(?:\.[0-9]+)?)\s*(?P<unit>[A-Za-z]*)$`)
)

var sizeUnits = map[string]float64{
	"":    1,
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"PiB": 1 << 50,
	"EiB": 1 << 60,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"PB":  1e15,
	"EB":  1e18,
}

// ParseSize converts a size spec like "1.95GiB" into bytes.
func ParseSize(spec string) (uint64, error) {
	m := sizeSpecRE.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("malformed size spec %q", spec)
	}
	value, err := strconv.ParseFloat(m[sizeSpecRE.SubexpIndex("value")], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed size spec %q: %w", spec, err)
	}
	mult, ok := sizeUnits[m[sizeSpecRE.SubexpIndex("unit")]]
	if !ok {
		return 0, fmt.Errorf("size spec %q: unknown unit", spec)
	}
	return uint64(value * mult), nil
}

// named extracts a named subexpression from a match of re against s.
func named(re *regexp.Regexp, match []string, name string) string {
	return match[re.SubexpIndex(name)]
}

func deviceInfoFromMatch(match []string, logger *zap.Logger) *DeviceInfo {
	info := &DeviceInfo{Path: named(deviceRE, match, "path")}
	info.ID, _ = strconv.ParseUint(named(deviceRE, match, "id"), 10, 64)

	var err error
	if info.Size, err = ParseSize(named(deviceRE, match, "size")); err != nil {
		logger.Warn("unparseable device size", zap.Error(err))
	}
	if info.Used, err = ParseSize(named(deviceRE, match, "used")); err != nil {
		logger.Warn("unparseable device usage", zap.Error(err))
	}
	return info
}

func subvolumeInfoFromMatch(match []string) *SubvolumeInfo {
	info := &SubvolumeInfo{Path: named(subvolRE, match, "path")}
	info.ID, _ = strconv.ParseUint(named(subvolRE, match, "id"), 10, 64)
	info.ParentID, _ = strconv.ParseUint(named(subvolRE, match, "parent_id"), 10, 64)
	return info
}
