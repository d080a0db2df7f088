package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowmesh/flowmesh/pkg/models"
)

func newContext() *models.ExecutionContext {
	ctx := models.NewExecutionContext("exec-1", "wf-1",
		map[string]any{"order_id": "ord-9"},
		map[string]any{"region": "eu-west"},
	)
	ctx.SetResult("fetch", map[string]any{"status": "ok", "count": float64(3)})
	ctx.SetResult("score", 0.87)

	return ctx
}

func TestResolveInputReference(t *testing.T) {
	ctx := newContext()

	resolved := Resolve("payload={{input}}", ctx)
	assert.Equal(t, `payload={"order_id":"ord-9"}`, resolved)
}

func TestResolveNodeReferences(t *testing.T) {
	ctx := newContext()

	assert.Equal(t, "ok", Resolve("{{fetch.status}}", ctx))
	assert.Equal(t, "3", Resolve("{{fetch.count}}", ctx))
	assert.Equal(t, `{"count":3,"status":"ok"}`, Resolve("{{fetch}}", ctx))
	assert.Equal(t, "0.87", Resolve("{{score}}", ctx))
}

func TestResolveVariables(t *testing.T) {
	ctx := newContext()

	assert.Equal(t, "region=eu-west", Resolve("region={{vars.region}}", ctx))
	assert.Equal(t, "{{vars.missing}}", Resolve("{{vars.missing}}", ctx))
}

func TestUnresolvedReferencesStayLiteral(t *testing.T) {
	ctx := newContext()

	assert.Equal(t, "{{later.field}}", Resolve("{{later.field}}", ctx))
	assert.Equal(t, "{{fetch.missing}}", Resolve("{{fetch.missing}}", ctx))
	assert.Equal(t, "a {{}} b", Resolve("a {{}} b", ctx))
}

func TestResolveIsSinglePass(t *testing.T) {
	ctx := newContext()
	ctx.SetResult("loop", "{{loop}}")

	// The substituted text contains a reference, but resolved output is
	// never re-scanned.
	assert.Equal(t, "{{loop}}", Resolve("{{loop}}", ctx))

	ctx.SetResult("inner", "X")
	ctx.SetResult("outer", "{{inner}}")
	assert.Equal(t, "{{inner}}", Resolve("{{outer}}", ctx))
}

func TestResolveUnterminatedMarker(t *testing.T) {
	ctx := newContext()

	assert.Equal(t, "tail {{fetch.status", Resolve("tail {{fetch.status", ctx))
}

func TestResolveMixedText(t *testing.T) {
	ctx := newContext()

	resolved := Resolve("status={{fetch.status}} region={{vars.region}} raw={{nope}}", ctx)
	assert.Equal(t, "status=ok region=eu-west raw={{nope}}", resolved)
}
