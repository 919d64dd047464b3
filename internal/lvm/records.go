package lvm

import "strconv"

// Field counts of the report schemas requested with -o. A line is accepted
// only when it carries exactly this many key=value tokens; partial lines
// from older or newer lvm builds are skipped.
const (
	pvFieldCount = 11
	vgFieldCount = 8
	lvFieldCount = 6
)

// PVInfo describes one physical volume together with the volume group it
// belongs to. All sizes are in bytes.
type PVInfo struct {
	PVName        string `json:"pv_name"`
	PVUUID        string `json:"pv_uuid"`
	PEStart       uint64 `json:"pe_start"`
	VGName        string `json:"vg_name"`
	VGUUID        string `json:"vg_uuid"`
	VGSize        uint64 `json:"vg_size"`
	VGFree        uint64 `json:"vg_free"`
	VGExtentSize  uint64 `json:"vg_extent_size"`
	VGExtentCount uint64 `json:"vg_extent_count"`
	VGFreeCount   uint64 `json:"vg_free_count"`
	VGPVCount     uint64 `json:"vg_pv_count"`
}

// VGInfo describes one volume group. All sizes are in bytes.
type VGInfo struct {
	Name        string `json:"name"`
	UUID        string `json:"uuid"`
	Size        uint64 `json:"size"`
	Free        uint64 `json:"free"`
	ExtentSize  uint64 `json:"extent_size"`
	ExtentCount uint64 `json:"extent_count"`
	FreeCount   uint64 `json:"free_count"`
	PVCount     uint64 `json:"pv_count"`
}

// LVInfo describes one logical volume. Size is in bytes.
type LVInfo struct {
	VGName  string `json:"vg_name"`
	LVName  string `json:"lv_name"`
	UUID    string `json:"uuid"`
	Size    uint64 `json:"size"`
	Attr    string `json:"attr"`
	SegType string `json:"segtype"`
}

// uintVar parses a numeric report value, treating an absent or malformed
// field as zero the way the lvm report itself does for empty columns.
func uintVar(vars map[string]string, key string) uint64 {
	v, err := strconv.ParseUint(vars[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func pvInfoFromVars(vars map[string]string) *PVInfo {
	return &PVInfo{
		PVName:        vars["LVM2_PV_NAME"],
		PVUUID:        vars["LVM2_PV_UUID"],
		PEStart:       uintVar(vars, "LVM2_PE_START"),
		VGName:        vars["LVM2_VG_NAME"],
		VGUUID:        vars["LVM2_VG_UUID"],
		VGSize:        uintVar(vars, "LVM2_VG_SIZE"),
		VGFree:        uintVar(vars, "LVM2_VG_FREE"),
		VGExtentSize:  uintVar(vars, "LVM2_VG_EXTENT_SIZE"),
		VGExtentCount: uintVar(vars, "LVM2_VG_EXTENT_COUNT"),
		VGFreeCount:   uintVar(vars, "LVM2_VG_FREE_COUNT"),
		VGPVCount:     uintVar(vars, "LVM2_PV_COUNT"),
	}
}

func vgInfoFromVars(vars map[string]string) *VGInfo {
	return &VGInfo{
		Name:        vars["LVM2_VG_NAME"],
		UUID:        vars["LVM2_VG_UUID"],
		Size:        uintVar(vars, "LVM2_VG_SIZE"),
		Free:        uintVar(vars, "LVM2_VG_FREE"),
		ExtentSize:  uintVar(vars, "LVM2_VG_EXTENT_SIZE"),
		ExtentCount: uintVar(vars, "LVM2_VG_EXTENT_COUNT"),
		FreeCount:   uintVar(vars, "LVM2_VG_FREE_COUNT"),
		PVCount:     uintVar(vars, "LVM2_PV_COUNT"),
	}
}

func lvInfoFromVars(vars map[string]string) *LVInfo {
	return &LVInfo{
		VGName:  vars["LVM2_VG_NAME"],
		LVName:  vars["LVM2_LV_NAME"],
		UUID:    vars["LVM2_LV_UUID"],
		Size:    uintVar(vars, "LVM2_LV_SIZE"),
		Attr:    vars["LVM2_LV_ATTR"],
		SegType: vars["LVM2_SEGTYPE"],
	}
}
