package pipeline

import "fmt"

const (
	StageSleeve   = "sleeve"
	StageValidate = "validate"
	StageSelect   = "select"
	StageData     = "data"
	StageNet      = "net"
	StageOverlay  = "overlay"
	StageSize     = "size"
	StageExits    = "exits"
	StageHazard   = "hazard"
)

const (
	CodeSleeveFailed  = "sleeve_failed"
	CodeInvalidIntent = "invalid_intent"
	CodeNotSelected   = "not_selected"
	CodeMissingData   = "missing_market_data"
	CodeNettedOut     = "netted_out"
	CodeZeroUnits     = "zero_units"
	CodeNoExitPlan    = "no_exit_plan"
	CodeHazardActive  = "hazard_active"
)

// Warning records one intent suppressed, dropped or altered during a run.
// Overlay warnings carry the risk violation code.
type Warning struct {
	Stage  string `json:"stage"`
	Code   string `json:"code"`
	Symbol string `json:"symbol,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Msg    string `json:"msg"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s %s/%s: %s", w.Stage, w.Code, w.Symbol, w.Tag, w.Msg)
}
