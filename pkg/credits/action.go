package credits

import "fmt"

// Action is a metered AI action. Every Action must have an entry in costTable;
// Cost fails loudly otherwise so a new action cannot ship without a price.
type Action string

const (
	ActionAudioGenerate     Action = "AUDIO_GENERATE"
	ActionCTRPredict        Action = "CTR_PREDICT"
	ActionGapsAnalysis      Action = "GAPS_ANALYSIS"
	ActionIdeasGenerateNext Action = "IDEAS_GENERATE_NEXT"
	ActionIdeasGenerateSEO  Action = "IDEAS_GENERATE_SEO"
)

// costTable is the single source of truth for per-action pricing. It is
// consumed by the ledger and served verbatim to pricing displays.
var costTable = map[Action]int{
	ActionAudioGenerate:     15,
	ActionCTRPredict:        10,
	ActionGapsAnalysis:      20,
	ActionIdeasGenerateNext: 25,
	ActionIdeasGenerateSEO:  10,
}

// Actions returns all metered actions.
func Actions() []Action {
	return []Action{
		ActionAudioGenerate,
		ActionCTRPredict,
		ActionGapsAnalysis,
		ActionIdeasGenerateNext,
		ActionIdeasGenerateSEO,
	}
}

// Cost returns the positive credit cost of an action.
func Cost(action Action) (int, error) {
	cost, ok := costTable[action]
	if !ok {
		return 0, fmt.Errorf("unknown action %q", action)
	}
	return cost, nil
}

// CostTable returns a copy of the full pricing table.
func CostTable() map[Action]int {
	out := make(map[Action]int, len(costTable))
	for action, cost := range costTable {
		out[action] = cost
	}
	return out
}
