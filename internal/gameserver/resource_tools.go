package gameserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cory-johannsen/keeper/internal/game/resource"
)

// ResourceView is the wire form of a resource.
type ResourceView struct {
	ID        string   `json:"id" jsonschema:"resource identifier"`
	GameID    string   `json:"game_id" jsonschema:"owning game identifier"`
	OwnerType string   `json:"owner_type" jsonschema:"game or character"`
	OwnerID   *string  `json:"owner_id,omitempty" jsonschema:"owning entity id when owner_type is character"`
	Name      string   `json:"name" jsonschema:"resource name"`
	Category  string   `json:"category,omitempty" jsonschema:"free-form grouping label"`
	Value     float64  `json:"value" jsonschema:"current value, always within the bounds"`
	MinValue  *float64 `json:"min_value,omitempty" jsonschema:"lower bound; absent means unbounded below"`
	MaxValue  *float64 `json:"max_value,omitempty" jsonschema:"upper bound; absent means unbounded above"`
}

func resourceView(r *resource.Resource) ResourceView {
	return ResourceView{
		ID:        r.ID,
		GameID:    r.GameID,
		OwnerType: r.OwnerType,
		OwnerID:   r.OwnerID,
		Name:      r.Name,
		Category:  r.Category,
		Value:     r.Value,
		MinValue:  r.MinValue,
		MaxValue:  r.MaxValue,
	}
}

// ChangeView is the wire form of one ledger row.
type ChangeView struct {
	ID            string  `json:"id" jsonschema:"change identifier"`
	ResourceID    string  `json:"resource_id" jsonschema:"the changed resource"`
	PreviousValue float64 `json:"previous_value" jsonschema:"value before the change"`
	NewValue      float64 `json:"new_value" jsonschema:"value after clamping"`
	Delta         float64 `json:"delta" jsonschema:"new_value minus previous_value, the movement actually applied"`
	Reason        *string `json:"reason,omitempty" jsonschema:"caller-supplied reason"`
	Timestamp     string  `json:"timestamp" jsonschema:"RFC3339 time of the change"`
}

func changeView(c *resource.Change) ChangeView {
	return ChangeView{
		ID:            c.ID,
		ResourceID:    c.ResourceID,
		PreviousValue: c.PreviousValue,
		NewValue:      c.NewValue,
		Delta:         c.Delta,
		Reason:        c.Reason,
		Timestamp:     c.Timestamp.Format(time.RFC3339),
	}
}

// CreateResourceInput creates a bounded resource.
type CreateResourceInput struct {
	GameID    string   `json:"game_id" jsonschema:"owning game identifier"`
	OwnerType string   `json:"owner_type" jsonschema:"game or character"`
	OwnerID   *string  `json:"owner_id,omitempty" jsonschema:"owning entity id when owner_type is character"`
	Name      string   `json:"name" jsonschema:"resource name"`
	Category  string   `json:"category,omitempty" jsonschema:"free-form grouping label"`
	Value     float64  `json:"value" jsonschema:"initial value, clamped to the bounds"`
	MinValue  *float64 `json:"min_value,omitempty" jsonschema:"lower bound; omit for unbounded"`
	MaxValue  *float64 `json:"max_value,omitempty" jsonschema:"upper bound; omit for unbounded"`
}

// ResourceResult wraps a resource; Found is false when the id is unknown.
type ResourceResult struct {
	Found    bool         `json:"found" jsonschema:"false when no resource has the given id"`
	Resource ResourceView `json:"resource,omitempty" jsonschema:"the resource when found"`
}

// ResourceIDInput addresses an existing resource.
type ResourceIDInput struct {
	ResourceID string `json:"resource_id" jsonschema:"resource identifier"`
}

// UpdateResourceValueInput moves a resource's value.
type UpdateResourceValueInput struct {
	ResourceID string  `json:"resource_id" jsonschema:"resource identifier"`
	Mode       string  `json:"mode" jsonschema:"delta to add to the current value, set to replace it"`
	Value      float64 `json:"value" jsonschema:"the delta or the new value, per mode"`
	Reason     *string `json:"reason,omitempty" jsonschema:"recorded on the change row"`
}

// UpdateResourceValueResult returns the clamped resource and the ledger row.
type UpdateResourceValueResult struct {
	Found    bool         `json:"found" jsonschema:"false when no resource has the given id"`
	Resource ResourceView `json:"resource,omitempty" jsonschema:"the resource after clamping"`
	Change   ChangeView   `json:"change,omitempty" jsonschema:"the appended history row"`
}

// BoundPatch sets or clears one bound. Omitting the patch leaves the bound alone.
type BoundPatch struct {
	Value *float64 `json:"value" jsonschema:"the new bound; null clears it"`
}

// UpdateResourceInput patches resource metadata. Bound changes re-clamp the
// current value without writing a history row.
type UpdateResourceInput struct {
	ResourceID string      `json:"resource_id" jsonschema:"resource identifier"`
	Name       *string     `json:"name,omitempty" jsonschema:"new name"`
	Category   *string     `json:"category,omitempty" jsonschema:"new category"`
	MinValue   *BoundPatch `json:"min_value,omitempty" jsonschema:"lower bound patch: omit to keep, value null to clear"`
	MaxValue   *BoundPatch `json:"max_value,omitempty" jsonschema:"upper bound patch: omit to keep, value null to clear"`
}

// ResourceHistoryInput reads a resource's change history.
type ResourceHistoryInput struct {
	ResourceID string `json:"resource_id" jsonschema:"resource identifier"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum rows to return, newest first; 0 means all"`
}

// ResourceHistoryResult lists ledger rows newest first.
type ResourceHistoryResult struct {
	Changes []ChangeView `json:"changes" jsonschema:"change rows, newest first"`
}

// DeleteResourceResult acknowledges a deletion.
type DeleteResourceResult struct {
	Deleted bool `json:"deleted" jsonschema:"always true; unknown ids are a no-op"`
}

func registerResourceTools(server *mcp.Server, ledger *resource.Ledger) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_resource",
		Description: "Creates a bounded numeric resource. The initial value is clamped to the supplied bounds; bounds themselves are stored as given.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in CreateResourceInput) (*mcp.CallToolResult, ResourceResult, error) {
		r, err := ledger.Create(ctx, resource.CreateInput{
			GameID:    in.GameID,
			OwnerType: in.OwnerType,
			OwnerID:   in.OwnerID,
			Name:      in.Name,
			Category:  in.Category,
			Value:     in.Value,
			MinValue:  in.MinValue,
			MaxValue:  in.MaxValue,
		})
		if err != nil {
			return nil, ResourceResult{}, err
		}
		return nil, ResourceResult{Found: true, Resource: resourceView(r)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_resource",
		Description: "Reads a resource. An unknown id is reported as found=false, not an error.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ResourceIDInput) (*mcp.CallToolResult, ResourceResult, error) {
		r, err := ledger.Get(ctx, in.ResourceID)
		if err != nil {
			return nil, ResourceResult{}, err
		}
		if r == nil {
			return nil, ResourceResult{}, nil
		}
		return nil, ResourceResult{Found: true, Resource: resourceView(r)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_resource_value",
		Description: "Moves a resource's value by a delta or sets it outright, clamps to the bounds, and appends exactly one history row recording the movement actually applied.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in UpdateResourceValueInput) (*mcp.CallToolResult, UpdateResourceValueResult, error) {
		r, change, err := ledger.UpdateValue(ctx, in.ResourceID, in.Mode, in.Value, in.Reason)
		if err != nil {
			return nil, UpdateResourceValueResult{}, err
		}
		if r == nil {
			return nil, UpdateResourceValueResult{}, nil
		}
		return nil, UpdateResourceValueResult{
			Found:    true,
			Resource: resourceView(r),
			Change:   changeView(change),
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_resource",
		Description: "Patches resource metadata. Bound patches distinguish omitted (keep), null (clear), and value (set); a tightened bound re-clamps the current value without a history row.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in UpdateResourceInput) (*mcp.CallToolResult, ResourceResult, error) {
		patch := resource.Patch{
			Name:     in.Name,
			Category: in.Category,
		}
		if in.MinValue != nil {
			patch.MinValue = resource.FloatPatch{Set: true, Value: in.MinValue.Value}
		}
		if in.MaxValue != nil {
			patch.MaxValue = resource.FloatPatch{Set: true, Value: in.MaxValue.Value}
		}
		r, err := ledger.Update(ctx, in.ResourceID, patch)
		if err != nil {
			return nil, ResourceResult{}, err
		}
		if r == nil {
			return nil, ResourceResult{}, nil
		}
		return nil, ResourceResult{Found: true, Resource: resourceView(r)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_resource_history",
		Description: "Lists a resource's change history newest first, optionally capped.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ResourceHistoryInput) (*mcp.CallToolResult, ResourceHistoryResult, error) {
		changes, err := ledger.History(ctx, in.ResourceID, in.Limit)
		if err != nil {
			return nil, ResourceHistoryResult{}, err
		}
		views := make([]ChangeView, len(changes))
		for i, c := range changes {
			views[i] = changeView(c)
		}
		return nil, ResourceHistoryResult{Changes: views}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_resource",
		Description: "Deletes a resource and cascades its entire change history. Unknown ids are a no-op.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ResourceIDInput) (*mcp.CallToolResult, DeleteResourceResult, error) {
		if err := ledger.Delete(ctx, in.ResourceID); err != nil {
			return nil, DeleteResourceResult{}, err
		}
		return nil, DeleteResourceResult{Deleted: true}, nil
	})
}
