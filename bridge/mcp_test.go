package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ynl8015/otfit/closet"
)

var testMCPImpl = &mcp.Implementation{Name: "otfit-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*mcp.ClientSession, *Bridge) {
	t.Helper()
	b, _, _ := testBridge(t)
	srv := mcp.NewServer(testMCPImpl, nil)
	b.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session, b
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := toolResultErr(result); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func mcpCallToolErr(t *testing.T, session *mcp.ClientSession, name string, args any) error {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return toolResultErr(result)
}

// toolResultErr reconstructs a tool error on the client side. The SDK's
// CallToolResult.GetError always returns nil on clients because the
// underlying error field is not marshaled; IsError is the wire-level
// signal.
func toolResultErr(result *mcp.CallToolResult) error {
	if !result.IsError {
		return nil
	}
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return errors.New(tc.Text)
		}
	}
	return errors.New("tool error")
}

func TestMCPCartRoundtrip(t *testing.T) {
	session, _ := mcpSession(t)

	p := product("https://www.ssfshop.com/item/200")
	addText := mcpCallTool(t, session, "otfit_cart_add", map[string]any{"product": p})
	var added closet.Item
	if err := json.Unmarshal([]byte(addText), &added); err != nil {
		t.Fatalf("unmarshal add: %v", err)
	}
	if added.URL != p.URL || added.ID == "" {
		t.Fatalf("added item: %+v", added)
	}

	// Adding the same URL again must surface as a tool error.
	if err := mcpCallToolErr(t, session, "otfit_cart_add", map[string]any{"product": p}); err == nil {
		t.Fatal("duplicate add did not fail")
	}

	listText := mcpCallTool(t, session, "otfit_cart_list", map[string]any{})
	var listed struct {
		Items []closet.Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(listText), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("items: %d", len(listed.Items))
	}

	mcpCallTool(t, session, "otfit_cart_remove", map[string]any{"id": added.ID})
	listText = mcpCallTool(t, session, "otfit_cart_list", map[string]any{})
	listed.Items = nil
	if err := json.Unmarshal([]byte(listText), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Items) != 0 {
		t.Fatalf("items after remove: %d", len(listed.Items))
	}
}

func TestMCPMoodboardAssign(t *testing.T) {
	session, _ := mcpSession(t)

	p := product("https://www.ssfshop.com/item/201")
	text := mcpCallTool(t, session, "otfit_moodboard_assign", map[string]any{
		"slot":    "shoes",
		"product": p,
	})
	var slots closet.Slots
	if err := json.Unmarshal([]byte(text), &slots); err != nil {
		t.Fatal(err)
	}
	if slots.Shoes == nil || slots.Shoes.URL != p.URL {
		t.Fatalf("shoes slot: %+v", slots.Shoes)
	}

	if err := mcpCallToolErr(t, session, "otfit_moodboard_assign", map[string]any{
		"slot":    "hat",
		"product": p,
	}); err == nil {
		t.Fatal("unknown slot did not fail")
	}
}

func TestMCPSessionPhoto(t *testing.T) {
	session, b := mcpSession(t)
	ctx := context.Background()

	if err := mcpCallToolErr(t, session, "otfit_set_photo", map[string]any{"image": ""}); err == nil {
		t.Fatal("empty photo did not fail")
	}
	mcpCallTool(t, session, "otfit_set_photo", map[string]any{"image": "data:image/png;base64,aA=="})

	if err := b.cfg.Store.Set(ctx, map[string]any{"selectedProduct": product("https://www.ssfshop.com/item/202")}); err != nil {
		t.Fatal(err)
	}

	text := mcpCallTool(t, session, "otfit_session", map[string]any{})
	var sess Session
	if err := json.Unmarshal([]byte(text), &sess); err != nil {
		t.Fatal(err)
	}
	if !sess.HasPhoto || sess.Selected == nil {
		t.Fatalf("session: %+v", sess)
	}
}

func TestMCPTryOnWithoutSession(t *testing.T) {
	session, _ := mcpSession(t)

	// No uploaded photo and no selection: the tool reports the error
	// instead of failing the protocol call.
	if err := mcpCallToolErr(t, session, "otfit_try_on", map[string]any{}); err == nil {
		t.Fatal("try-on without session did not fail")
	}
}

func TestMCPReset(t *testing.T) {
	session, b := mcpSession(t)
	ctx := context.Background()

	if err := b.cfg.Store.Set(ctx, map[string]any{"tempUserImage": "data:image/png;base64,aA=="}); err != nil {
		t.Fatal(err)
	}
	mcpCallTool(t, session, "otfit_reset", map[string]any{})

	got, err := b.cfg.Store.Get(ctx, "tempUserImage")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatal("tempUserImage survived reset")
	}
}
