package models

// OverrideHint tells an upgrader whether the asset it transforms is a regular
// or derived asset, or the embedded copy of a base asset.
type OverrideHint int

const (
	HintUnknown OverrideHint = iota
	HintDerived
	HintBase
)

func (h OverrideHint) String() string {
	switch h {
	case HintDerived:
		return "derived"
	case HintBase:
		return "base"
	}
	return "unknown"
}
