package bridge

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ynl8015/otfit/closet"
	"github.com/ynl8015/otfit/kit"
	"github.com/ynl8015/otfit/malls"
)

// RegisterMCP exposes the session operations as MCP tools for agent
// surfaces.
func (b *Bridge) RegisterMCP(srv *mcp.Server) {
	b.registerSessionTools(srv)
	b.registerTryOnTool(srv)
	b.registerCartTools(srv)
	b.registerMoodboardTools(srv)
	b.registerResetTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var productSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":     map[string]any{"type": "string"},
		"image":    map[string]any{"type": "string"},
		"price":    map[string]any{"type": "string"},
		"category": map[string]any{"type": "string"},
		"brand":    map[string]any{"type": "string"},
		"mall":     map[string]any{"type": "string"},
		"url":      map[string]any{"type": "string"},
	},
	"required": []string{"image", "url"},
}

// toolLogging reports failed tool calls; successes stay at debug.
func (b *Bridge) toolLogging(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				b.cfg.Logger.Warn("bridge: tool failed", "tool", name, "error", err)
			} else {
				b.cfg.Logger.Debug("bridge: tool ok", "tool", name)
			}
			return resp, err
		}
	}
}

func mcpCtx(ctx context.Context) context.Context {
	return kit.WithTransport(ctx, "mcp")
}

func decodeArgs[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	r := new(T)
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: r, EnrichCtx: mcpCtx}, nil
}

// --- session ---

type setPhotoReq struct {
	Image string `json:"image"`
}

func (b *Bridge) registerSessionTools(srv *mcp.Server) {
	get := &mcp.Tool{
		Name:        "otfit_session",
		Description: "Read the session state: uploaded photo presence, selected product, garment, and the cached try-on result.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	getEndpoint := kit.Chain(b.toolLogging(get.Name))(func(ctx context.Context, _ any) (any, error) {
		return b.Session(ctx)
	})
	kit.RegisterMCPTool(srv, get, getEndpoint, decodeArgs[struct{}])

	photo := &mcp.Tool{
		Name:        "otfit_set_photo",
		Description: "Store the user photo for the session. Try-on calls without an explicit userImage fall back to it.",
		InputSchema: inputSchema(map[string]any{
			"image": map[string]any{"type": "string", "description": "Photo as a data URI or URL"},
		}, []string{"image"}),
	}
	photoEndpoint := kit.Chain(b.toolLogging(photo.Name))(func(ctx context.Context, req any) (any, error) {
		if err := b.SetPhoto(ctx, req.(*setPhotoReq).Image); err != nil {
			return nil, err
		}
		return map[string]any{"stored": true}, nil
	})
	kit.RegisterMCPTool(srv, photo, photoEndpoint, decodeArgs[setPhotoReq])
}

// --- try-on ---

func (b *Bridge) registerTryOnTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "otfit_try_on",
		Description: "Run a virtual try-on. Omitted fields fall back to the session's uploaded photo and selected product.",
		InputSchema: inputSchema(map[string]any{
			"userImage":    map[string]any{"type": "string", "description": "User photo URL or data URI"},
			"garmentImage": map[string]any{"type": "string", "description": "Garment image URL"},
			"category":     map[string]any{"type": "string", "description": "Upper, Lower or Dress"},
		}, nil),
	}

	endpoint := kit.Chain(b.toolLogging(tool.Name))(func(ctx context.Context, req any) (any, error) {
		return b.TryOn(ctx, *req.(*TryOnRequest))
	})

	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[TryOnRequest])
}

// --- cart ---

type cartAddReq struct {
	Product malls.Product `json:"product"`
}

type cartRemoveReq struct {
	ID string `json:"id"`
}

func (b *Bridge) registerCartTools(srv *mcp.Server) {
	list := &mcp.Tool{
		Name:        "otfit_cart_list",
		Description: "List cart items grouped by mall and brand.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	listEndpoint := kit.Chain(b.toolLogging(list.Name))(func(ctx context.Context, _ any) (any, error) {
		items, err := b.cfg.Cart.Items(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items, "groups": closet.Group(items)}, nil
	})
	kit.RegisterMCPTool(srv, list, listEndpoint, decodeArgs[struct{}])

	add := &mcp.Tool{
		Name:        "otfit_cart_add",
		Description: "Add a product to the cart. Duplicate product URLs are rejected.",
		InputSchema: inputSchema(map[string]any{
			"product": productSchema,
		}, []string{"product"}),
	}
	addEndpoint := kit.Chain(b.toolLogging(add.Name))(func(ctx context.Context, req any) (any, error) {
		return b.cfg.Cart.Add(ctx, req.(*cartAddReq).Product)
	})
	kit.RegisterMCPTool(srv, add, addEndpoint, decodeArgs[cartAddReq])

	remove := &mcp.Tool{
		Name:        "otfit_cart_remove",
		Description: "Remove a cart item by id.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Cart item id"},
		}, []string{"id"}),
	}
	removeEndpoint := kit.Chain(b.toolLogging(remove.Name))(func(ctx context.Context, req any) (any, error) {
		r := req.(*cartRemoveReq)
		if err := b.cfg.Cart.Remove(ctx, r.ID); err != nil {
			return nil, err
		}
		return map[string]any{"removed": r.ID}, nil
	})
	kit.RegisterMCPTool(srv, remove, removeEndpoint, decodeArgs[cartRemoveReq])
}

// --- mood board ---

type moodboardAssignReq struct {
	Slot    string        `json:"slot"`
	Product malls.Product `json:"product"`
}

func (b *Bridge) registerMoodboardTools(srv *mcp.Server) {
	get := &mcp.Tool{
		Name:        "otfit_moodboard_get",
		Description: "Return the four mood board slots (top, bottom, shoes, accessory).",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	getEndpoint := kit.Chain(b.toolLogging(get.Name))(func(ctx context.Context, _ any) (any, error) {
		if err := b.cfg.Moodboard.Load(ctx); err != nil {
			return nil, err
		}
		return b.cfg.Moodboard.Slots(), nil
	})
	kit.RegisterMCPTool(srv, get, getEndpoint, decodeArgs[struct{}])

	assign := &mcp.Tool{
		Name:        "otfit_moodboard_assign",
		Description: "Assign a product to a mood board slot, replacing any occupant.",
		InputSchema: inputSchema(map[string]any{
			"slot":    map[string]any{"type": "string", "description": "top, bottom, shoes or accessory"},
			"product": productSchema,
		}, []string{"slot", "product"}),
	}
	assignEndpoint := kit.Chain(b.toolLogging(assign.Name))(func(ctx context.Context, req any) (any, error) {
		r := req.(*moodboardAssignReq)
		item := closet.Item{Product: r.Product}
		if err := b.cfg.Moodboard.Assign(ctx, closet.Slot(r.Slot), item); err != nil {
			return nil, err
		}
		return b.cfg.Moodboard.Slots(), nil
	})
	kit.RegisterMCPTool(srv, assign, assignEndpoint, decodeArgs[moodboardAssignReq])
}

// --- reset ---

func (b *Bridge) registerResetTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "otfit_reset",
		Description: "Clear the session keys (photo, selection, results). Cart and mood board survive.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := kit.Chain(b.toolLogging(tool.Name))(func(ctx context.Context, _ any) (any, error) {
		if err := b.Reset(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"reset": true}, nil
	})
	kit.RegisterMCPTool(srv, tool, endpoint, decodeArgs[struct{}])
}
