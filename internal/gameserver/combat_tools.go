package gameserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cory-johannsen/keeper/internal/game/combat"
)

// ParticipantView is the wire form of one combat participant.
type ParticipantView struct {
	CharacterID string `json:"character_id" jsonschema:"character identifier"`
	Initiative  int    `json:"initiative" jsonschema:"rolled initiative value"`
	IsActive    bool   `json:"is_active" jsonschema:"whether the participant still takes turns"`
}

// CombatView is the wire form of a combat record.
type CombatView struct {
	ID            string            `json:"id" jsonschema:"combat identifier"`
	GameID        string            `json:"game_id" jsonschema:"owning game identifier"`
	LocationID    string            `json:"location_id,omitempty" jsonschema:"optional location reference"`
	Participants  []ParticipantView `json:"participants" jsonschema:"participants in initiative order"`
	TurnIndex     int               `json:"turn_index" jsonschema:"index of the participant whose turn it is"`
	Round         int               `json:"round" jsonschema:"current round, starting at 1"`
	Status        string            `json:"status" jsonschema:"active or resolved"`
	Log           []string          `json:"log" jsonschema:"append-only narration log"`
	CurrentTurnID string            `json:"current_turn_id,omitempty" jsonschema:"character id of the current turn holder"`
}

func combatView(c *combat.Combat) CombatView {
	// Collections must stay non-nil: nil marshals as JSON null, which the
	// tool's output schema rejects (it requires an array).
	log := c.Log
	if log == nil {
		log = []string{}
	}
	participants := make([]ParticipantView, len(c.Participants))
	for i, p := range c.Participants {
		participants[i] = ParticipantView{
			CharacterID: p.CharacterID,
			Initiative:  p.Initiative,
			IsActive:    p.IsActive,
		}
	}
	view := CombatView{
		ID:           c.ID,
		GameID:       c.GameID,
		LocationID:   c.LocationID,
		Participants: participants,
		TurnIndex:    c.TurnIndex,
		Round:        c.Round,
		Status:       string(c.Status),
		Log:          log,
	}
	if current := c.Current(); current != nil && !c.Resolved() {
		view.CurrentTurnID = current.CharacterID
	}
	return view
}

// CombatResult wraps a combat lookup; Found is false when the id is unknown.
type CombatResult struct {
	Found  bool       `json:"found" jsonschema:"false when no combat has the given id"`
	Combat CombatView `json:"combat,omitempty" jsonschema:"the combat record when found"`
}

func combatResult(c *combat.Combat) CombatResult {
	if c == nil {
		// The zero view needs empty (not nil) collections to satisfy the
		// output schema; nil marshals as JSON null.
		return CombatResult{Combat: CombatView{Participants: []ParticipantView{}, Log: []string{}}}
	}
	return CombatResult{Found: true, Combat: combatView(c)}
}

// StartCombatInput starts a combat encounter.
type StartCombatInput struct {
	GameID         string   `json:"game_id" jsonschema:"owning game identifier"`
	LocationID     string   `json:"location_id,omitempty" jsonschema:"optional location reference"`
	ParticipantIDs []string `json:"participant_ids" jsonschema:"character ids joining the combat"`
}

// CombatIDInput addresses an existing combat.
type CombatIDInput struct {
	CombatID string `json:"combat_id" jsonschema:"combat identifier"`
}

// RemoveParticipantInput removes one character from the turn order.
type RemoveParticipantInput struct {
	CombatID    string `json:"combat_id" jsonschema:"combat identifier"`
	CharacterID string `json:"character_id" jsonschema:"character to deactivate"`
}

// CombatLogInput appends one narration entry.
type CombatLogInput struct {
	CombatID string `json:"combat_id" jsonschema:"combat identifier"`
	Entry    string `json:"entry" jsonschema:"narration text to append"`
}

func registerCombatTools(server *mcp.Server, seq *combat.Sequencer) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_combat",
		Description: "Starts a combat encounter: rolls dexterity-modified initiative for every participant and orders turns descending. Fails without writing if the game or any participant is unknown.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in StartCombatInput) (*mcp.CallToolResult, CombatResult, error) {
		c, err := seq.Start(ctx, in.GameID, in.LocationID, in.ParticipantIDs)
		if err != nil {
			return nil, CombatResult{}, err
		}
		return nil, combatResult(c), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_combat",
		Description: "Reads a combat record. An unknown id is reported as found=false, not an error.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in CombatIDInput) (*mcp.CallToolResult, CombatResult, error) {
		c, err := seq.Get(ctx, in.CombatID)
		if err != nil {
			return nil, CombatResult{}, err
		}
		return nil, combatResult(c), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "next_turn",
		Description: "Advances to the next active participant, incrementing the round when the order wraps. Auto-resolves the combat if nobody is active.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in CombatIDInput) (*mcp.CallToolResult, CombatResult, error) {
		c, err := seq.Advance(ctx, in.CombatID)
		if err != nil {
			return nil, CombatResult{}, err
		}
		return nil, combatResult(c), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_participant",
		Description: "Deactivates a participant without removing their slot. Auto-resolves the combat when one or zero active participants remain. Unknown characters are a no-op.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RemoveParticipantInput) (*mcp.CallToolResult, CombatResult, error) {
		c, err := seq.RemoveParticipant(ctx, in.CombatID, in.CharacterID)
		if err != nil {
			return nil, CombatResult{}, err
		}
		return nil, combatResult(c), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_combat",
		Description: "Resolves a combat. Idempotent: ending an already resolved combat returns it unchanged.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in CombatIDInput) (*mcp.CallToolResult, CombatResult, error) {
		c, err := seq.End(ctx, in.CombatID)
		if err != nil {
			return nil, CombatResult{}, err
		}
		return nil, combatResult(c), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_combat_log",
		Description: "Appends a narration entry to the combat log.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in CombatLogInput) (*mcp.CallToolResult, CombatResult, error) {
		if in.Entry == "" {
			return nil, CombatResult{}, fmt.Errorf("entry must not be empty")
		}
		c, err := seq.Log(ctx, in.CombatID, in.Entry)
		if err != nil {
			return nil, CombatResult{}, err
		}
		return nil, combatResult(c), nil
	})
}
