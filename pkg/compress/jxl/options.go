package jxl

import "fmt"

// EncodeMode selects the coding path
type EncodeMode int

const (
	// Lossless uses modular coding with no responsive transform
	Lossless EncodeMode = iota
	// ProgressiveLossless adds the responsive transform and center-first group order
	ProgressiveLossless
	// ProgressiveVarDCT uses the DCT path; lossy unless Distance is zero
	ProgressiveVarDCT
)

var modeNames = map[EncodeMode]string{
	Lossless:            "Lossless",
	ProgressiveLossless: "ProgressiveLossless",
	ProgressiveVarDCT:   "ProgressiveVarDCT",
}

func (m EncodeMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("EncodeMode(%d)", int(m))
}

// ParseEncodeMode parses one of the mode names returned by String
func ParseEncodeMode(s string) (EncodeMode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return Lossless, fmt.Errorf("unknown encode mode %q", s)
}

// EncodeOptions is passed by value into Encode and never mutated
type EncodeOptions struct {
	Mode          EncodeMode
	Effort        int     // 1 (fastest) to 10 (smallest)
	CenterX       int     // -1 lets the engine pick the center
	CenterY       int     // -1 lets the engine pick the center
	ProgressiveDC int     // 0 off, 1 partial, 2 full two-pass
	ProgressiveAC bool    // VarDCT only
	Distance      float32 // 0 is mathematically lossless
}

// DefaultOptions is progressive lossless at effort 7, engine-chosen center
func DefaultOptions() EncodeOptions {
	return ProgressiveLosslessOptions(7, -1, -1)
}

// LosslessOptions returns options for plain lossless coding
func LosslessOptions(effort int) EncodeOptions {
	return EncodeOptions{Mode: Lossless, Effort: effort, CenterX: -1, CenterY: -1}
}

// ProgressiveLosslessOptions returns options for center-first lossless coding
func ProgressiveLosslessOptions(effort, centerX, centerY int) EncodeOptions {
	return EncodeOptions{Mode: ProgressiveLossless, Effort: effort, CenterX: centerX, CenterY: centerY}
}

// ProgressiveVarDCTOptions returns options for the DCT path
func ProgressiveVarDCTOptions(effort int, distance float32, centerX, centerY, progressiveDC int, progressiveAC bool) EncodeOptions {
	return EncodeOptions{
		Mode:          ProgressiveVarDCT,
		Effort:        effort,
		CenterX:       centerX,
		CenterY:       centerY,
		ProgressiveDC: progressiveDC,
		ProgressiveAC: progressiveAC,
		Distance:      distance,
	}
}

// IsLossless reports whether the options can only produce lossless output
func (o EncodeOptions) IsLossless() bool {
	return settingsFor(o).lossless
}

// settingID names an engine frame option independently of the engine binding
type settingID int

const (
	settingModular settingID = iota
	settingResponsive
	settingGroupOrder
	settingGroupOrderCenterX
	settingGroupOrderCenterY
	settingProgressiveDC
	settingProgressiveAC
	settingEffort
)

type frameOption struct {
	id    settingID
	value int64
}

// frameSettings is the immutable engine configuration for one encode
type frameSettings struct {
	lossless bool
	distance float32
	options  []frameOption // applied in order
}

func (s frameSettings) option(id settingID) (int64, bool) {
	for _, o := range s.options {
		if o.id == id {
			return o.value, true
		}
	}
	return 0, false
}

// settingsFor resolves the mode into the one record the engine layer applies
func settingsFor(o EncodeOptions) frameSettings {
	centerFirst := []frameOption{
		{settingGroupOrder, 1},
		{settingGroupOrderCenterX, int64(o.CenterX)},
		{settingGroupOrderCenterY, int64(o.CenterY)},
	}
	var s frameSettings
	switch o.Mode {
	case Lossless:
		s = frameSettings{lossless: true, options: []frameOption{
			{settingModular, 1},
			{settingResponsive, 0},
		}}
	case ProgressiveLossless:
		s = frameSettings{lossless: true, options: append([]frameOption{
			{settingModular, 1},
			{settingResponsive, 1},
		}, centerFirst...)}
	case ProgressiveVarDCT:
		s = frameSettings{lossless: o.Distance == 0, distance: o.Distance, options: []frameOption{
			{settingModular, 0},
			{settingProgressiveDC, int64(o.ProgressiveDC)},
		}}
		if o.ProgressiveAC {
			s.options = append(s.options, frameOption{settingProgressiveAC, 1})
		}
		s.options = append(s.options, centerFirst...)
	default:
		// never lossy for a mode we do not know
		s = frameSettings{lossless: true}
	}
	s.options = append(s.options, frameOption{settingEffort, int64(o.Effort)})
	return s
}
