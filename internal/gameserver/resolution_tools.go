package gameserver

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/game/table"
)

// RollView is the wire form of one dice roll.
type RollView struct {
	Expression string `json:"expression" jsonschema:"the rolled expression, e.g. 2d6+3"`
	Dice       []int  `json:"dice" jsonschema:"individual die results"`
	Modifier   int    `json:"modifier" jsonschema:"flat modifier from the expression"`
	Total      int    `json:"total" jsonschema:"sum of dice plus modifier"`
}

func rollView(r dice.RollResult) RollView {
	return RollView{
		Expression: r.Expression,
		Dice:       r.Dice,
		Modifier:   r.Modifier,
		Total:      r.Total(),
	}
}

// RollDiceInput rolls one expression.
type RollDiceInput struct {
	Expression string `json:"expression" jsonschema:"dice expression in NdX[+/-M] form, e.g. 1d20 or 2d6+3"`
}

// CheckView is the wire form of a resolved check.
type CheckView struct {
	Success         bool     `json:"success" jsonschema:"whether the check succeeded after critical overrides"`
	Total           int      `json:"total" jsonschema:"roll total plus modifier"`
	Margin          int      `json:"margin" jsonschema:"total minus difficulty, reported even on a critical override"`
	Modifier        int      `json:"modifier" jsonschema:"additive modifier applied to the roll"`
	Roll            RollView `json:"roll" jsonschema:"the underlying base dice roll"`
	CriticalSuccess bool     `json:"critical_success" jsonschema:"first die met the critical success threshold"`
	CriticalFailure bool     `json:"critical_failure" jsonschema:"first die met the critical failure threshold"`
}

func checkView(r *check.Result) CheckView {
	return CheckView{
		Success:         r.Success,
		Total:           r.Total,
		Margin:          r.Margin,
		Modifier:        r.Modifier,
		Roll:            rollView(r.Roll),
		CriticalSuccess: r.CriticalSuccess,
		CriticalFailure: r.CriticalFailure,
	}
}

// SkillCheckInput resolves one check against the game's ruleset.
type SkillCheckInput struct {
	GameID      string `json:"game_id" jsonschema:"game whose ruleset governs the check"`
	CharacterID string `json:"character_id,omitempty" jsonschema:"character whose skill and attribute contribute"`
	Skill       string `json:"skill,omitempty" jsonschema:"skill name to add when present on the character"`
	Attribute   string `json:"attribute,omitempty" jsonschema:"attribute name, folded in as floor((value-10)/2)"`
	Difficulty  int    `json:"difficulty" jsonschema:"target number the total must meet"`
	Bonus       int    `json:"bonus,omitempty" jsonschema:"flat situational modifier"`
}

// ContestSideInput names one side of an opposed check.
type ContestSideInput struct {
	CharacterID string `json:"character_id,omitempty" jsonschema:"character whose skill and attribute contribute"`
	Skill       string `json:"skill,omitempty" jsonschema:"skill name to add when present on the character"`
	Attribute   string `json:"attribute,omitempty" jsonschema:"attribute name, folded in as floor((value-10)/2)"`
	Bonus       int    `json:"bonus,omitempty" jsonschema:"flat situational modifier"`
}

// OpposedCheckInput resolves an attacker-versus-defender contest.
type OpposedCheckInput struct {
	GameID   string           `json:"game_id" jsonschema:"game whose ruleset governs both checks"`
	Attacker ContestSideInput `json:"attacker" jsonschema:"the initiating side"`
	Defender ContestSideInput `json:"defender" jsonschema:"the opposing side"`
}

// OpposedCheckResult pairs both check results with the winner.
type OpposedCheckResult struct {
	Attacker CheckView `json:"attacker" jsonschema:"attacker's check at difficulty 0"`
	Defender CheckView `json:"defender" jsonschema:"defender's check at difficulty 0"`
	Winner   string    `json:"winner" jsonschema:"attacker, defender, or tie"`
}

// RollTableInput resolves a random table.
type RollTableInput struct {
	TableID  string `json:"table_id" jsonschema:"random table identifier"`
	Modifier int    `json:"modifier,omitempty" jsonschema:"added to the table roll before range matching"`
}

// TableEntryView is the wire form of a selected table entry.
type TableEntryView struct {
	MinRoll int    `json:"min_roll" jsonschema:"inclusive lower bound of the entry's range"`
	MaxRoll int    `json:"max_roll" jsonschema:"inclusive upper bound of the entry's range"`
	Result  string `json:"result" jsonschema:"the entry's result text"`
}

// TableRollView is one resolution step, nesting subtable results.
type TableRollView struct {
	TableID   string         `json:"table_id" jsonschema:"resolved table identifier"`
	TableName string         `json:"table_name" jsonschema:"resolved table name"`
	Roll      RollView       `json:"roll" jsonschema:"the table dice roll"`
	Modifier  int            `json:"modifier" jsonschema:"modifier added to the roll"`
	Total     int            `json:"total" jsonschema:"roll total plus modifier, matched against ranges"`
	Entry     TableEntryView `json:"entry" jsonschema:"the selected entry"`
	Subtable  *TableRollView `json:"subtable,omitempty" jsonschema:"nested result when the entry chains into another table"`
}

func tableRollView(r *table.Result) *TableRollView {
	if r == nil {
		return nil
	}
	return &TableRollView{
		TableID:   r.TableID,
		TableName: r.TableName,
		Roll:      rollView(r.Roll),
		Modifier:  r.Modifier,
		Total:     r.Total,
		Entry: TableEntryView{
			MinRoll: r.Entry.MinRoll,
			MaxRoll: r.Entry.MaxRoll,
			Result:  r.Entry.Result,
		},
		Subtable: tableRollView(r.Subtable),
	}
}

// RollTableResult wraps a table roll; Found is false when the id is unknown.
type RollTableResult struct {
	Found  bool           `json:"found" jsonschema:"false when no table has the given id"`
	Result *TableRollView `json:"result,omitempty" jsonschema:"the resolution when found"`
}

// rollTableOutputSchema is spelled out by hand because TableRollView is
// recursive and schema inference rejects cyclic types; it mirrors the
// structs above field for field, with the recursion expressed via $defs.
func rollTableOutputSchema() *jsonschema.Schema {
	noExtra := func() *jsonschema.Schema { return &jsonschema.Schema{Not: &jsonschema.Schema{}} }
	rollView := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:                 "object",
			AdditionalProperties: noExtra(),
			Properties: map[string]*jsonschema.Schema{
				"expression": {Type: "string", Description: "the rolled expression, e.g. 2d6+3"},
				"dice":       {Type: "array", Items: &jsonschema.Schema{Type: "integer"}, Description: "individual die results"},
				"modifier":   {Type: "integer", Description: "flat modifier from the expression"},
				"total":      {Type: "integer", Description: "sum of dice plus modifier"},
			},
			Required: []string{"expression", "dice", "modifier", "total"},
		}
	}
	entryView := &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: noExtra(),
		Properties: map[string]*jsonschema.Schema{
			"min_roll": {Type: "integer", Description: "inclusive lower bound of the entry's range"},
			"max_roll": {Type: "integer", Description: "inclusive upper bound of the entry's range"},
			"result":   {Type: "string", Description: "the entry's result text"},
		},
		Required: []string{"min_roll", "max_roll", "result"},
	}
	tableRollView := &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: noExtra(),
		Properties: map[string]*jsonschema.Schema{
			"table_id":   {Type: "string", Description: "resolved table identifier"},
			"table_name": {Type: "string", Description: "resolved table name"},
			"roll":       rollView(),
			"modifier":   {Type: "integer", Description: "modifier added to the roll"},
			"total":      {Type: "integer", Description: "roll total plus modifier, matched against ranges"},
			"entry":      entryView,
			"subtable":   {Ref: "#/$defs/tableRollView", Description: "nested result when the entry chains into another table"},
		},
		Required: []string{"table_id", "table_name", "roll", "modifier", "total", "entry"},
	}
	tableRollView.Properties["roll"].Description = "the table dice roll"
	tableRollView.Properties["entry"].Description = "the selected entry"
	return &jsonschema.Schema{
		Type:                 "object",
		AdditionalProperties: noExtra(),
		Defs:                 map[string]*jsonschema.Schema{"tableRollView": tableRollView},
		Properties: map[string]*jsonschema.Schema{
			"found":  {Type: "boolean", Description: "false when no table has the given id"},
			"result": {Ref: "#/$defs/tableRollView", Description: "the resolution when found"},
		},
		Required: []string{"found"},
	}
}

func registerResolutionTools(server *mcp.Server, evaluator *check.Evaluator, resolver *table.Resolver, roller *dice.Roller) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "roll_dice",
		Description: "Rolls a dice expression in strict NdX[+/-M] form. Anything outside that grammar is rejected.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in RollDiceInput) (*mcp.CallToolResult, RollView, error) {
		result, err := roller.RollExpr(in.Expression)
		if err != nil {
			return nil, RollView{}, err
		}
		return nil, rollView(result), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "skill_check",
		Description: "Resolves a check using the game's ruleset: base dice plus bonus, skill, and attribute modifiers versus a difficulty. First-die critical thresholds override the outcome, failure checked first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in SkillCheckInput) (*mcp.CallToolResult, CheckView, error) {
		result, err := evaluator.Evaluate(ctx, check.Input{
			GameID:      in.GameID,
			CharacterID: in.CharacterID,
			Skill:       in.Skill,
			Attribute:   in.Attribute,
			Difficulty:  in.Difficulty,
			Bonus:       in.Bonus,
		})
		if err != nil {
			return nil, CheckView{}, err
		}
		return nil, checkView(result), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "opposed_check",
		Description: "Resolves an opposed check: both sides roll at difficulty 0 and the strictly greater total wins. Equal totals are a tie; criticals are reported but do not decide the winner.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in OpposedCheckInput) (*mcp.CallToolResult, OpposedCheckResult, error) {
		result, err := evaluator.Contest(ctx, in.GameID,
			check.Side{
				CharacterID: in.Attacker.CharacterID,
				Skill:       in.Attacker.Skill,
				Attribute:   in.Attacker.Attribute,
				Bonus:       in.Attacker.Bonus,
			},
			check.Side{
				CharacterID: in.Defender.CharacterID,
				Skill:       in.Defender.Skill,
				Attribute:   in.Defender.Attribute,
				Bonus:       in.Defender.Bonus,
			},
		)
		if err != nil {
			return nil, OpposedCheckResult{}, err
		}
		return nil, OpposedCheckResult{
			Attacker: checkView(result.Attacker),
			Defender: checkView(result.Defender),
			Winner:   result.Winner,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:         "roll_table",
		Description:  "Rolls a random table: first range match in stored order wins, then a weighted draw over positive weights, then the first entry unconditionally. Subtable references resolve recursively.",
		OutputSchema: rollTableOutputSchema(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RollTableInput) (*mcp.CallToolResult, RollTableResult, error) {
		result, err := resolver.Resolve(ctx, in.TableID, in.Modifier)
		if err != nil {
			return nil, RollTableResult{}, err
		}
		if result == nil {
			return nil, RollTableResult{}, nil
		}
		return nil, RollTableResult{Found: true, Result: tableRollView(result)}, nil
	})
}
