package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/runtime"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *domain.Graph {
	t.Helper()
	g, err := compiler.NewParser().Parse([]byte(doc))
	require.NoError(t, err)
	return g
}

const welcomeGraph = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "welcome", "type": "action-send-message", "data": {"text": "Hello {{name}}, you have {{ count }} {{missing}}"}}
	],
	"connections": [{"id": "c1", "source": "start", "target": "welcome"}],
	"variables": {"name": {"defaultValue": "guest"}}
}`

func TestEngine_SendMessage(t *testing.T) {
	g := mustParse(t, welcomeGraph)
	engine := runtime.NewEngine()
	ctx := context.Background()
	scope := g.Defaults()
	scope["count"] = 3

	res, err := engine.Step(ctx, g, "start", scope)
	require.NoError(t, err)
	assert.Empty(t, res.Effects)
	assert.Equal(t, "welcome", res.Next)

	res, err = engine.Step(ctx, g, "welcome", scope)
	require.NoError(t, err)
	assert.True(t, res.Terminal())
	require.Len(t, res.Effects, 1)
	assert.Equal(t, domain.EffectSendMessage, res.Effects[0].Type)
	assert.Equal(t, "welcome", res.Effects[0].NodeID)
	assert.Equal(t, "Hello guest, you have 3 {{missing}}", res.Effects[0].Text)
}

func TestEngine_NodeNotFound(t *testing.T) {
	g := mustParse(t, welcomeGraph)
	_, err := runtime.NewEngine().Step(context.Background(), g, "ghost", domain.Scope{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEngine_AmbiguousBranch(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "a", "type": "action-send-message"},
			{"id": "b", "type": "action-send-message"}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "a"},
			{"id": "c2", "source": "start", "target": "b"}
		]
	}`)

	_, err := runtime.NewEngine().Step(context.Background(), g, "start", domain.Scope{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAmbiguousBranch))

	var be *domain.BranchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 2, be.Outgoing)
}

const conditionGraph = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "check", "type": "condition", "data": {"variable": "age", "operator": ">=", "value": 18}},
		{"id": "adult", "type": "action-send-message", "data": {"text": "welcome"}},
		{"id": "minor", "type": "action-send-message", "data": {"text": "sorry"}}
	],
	"connections": [
		{"id": "c1", "source": "start", "target": "check"},
		{"id": "c2", "source": "check", "target": "adult", "label": "Yes"},
		{"id": "c3", "source": "check", "target": "minor", "sourceHandle": "false"}
	]
}`

func TestEngine_Condition(t *testing.T) {
	g := mustParse(t, conditionGraph)
	engine := runtime.NewEngine()
	ctx := context.Background()

	res, err := engine.Step(ctx, g, "check", domain.Scope{"age": 21})
	require.NoError(t, err)
	assert.Equal(t, "adult", res.Next)

	res, err = engine.Step(ctx, g, "check", domain.Scope{"age": "12"})
	require.NoError(t, err)
	assert.Equal(t, "minor", res.Next)
}

func TestEngine_UnreachableBranch(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "check", "type": "condition", "data": {"variable": "ok", "operator": "exists"}},
			{"id": "yes", "type": "action-send-message"}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "check"},
			{"id": "c2", "source": "check", "target": "yes", "label": "true"}
		]
	}`)

	_, err := runtime.NewEngine().Step(context.Background(), g, "check", domain.Scope{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnreachableBranch))
	assert.Equal(t, "UnreachableBranch", domain.ErrorKind(err))
}

func TestEngine_CustomBranchLabels(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "check", "type": "condition", "data": {"variable": "vip", "operator": "==", "value": true}},
			{"id": "gold", "type": "action-send-message"},
			{"id": "plain", "type": "action-send-message"}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "check"},
			{"id": "c2", "source": "check", "target": "gold", "sourceHandle": "match"},
			{"id": "c3", "source": "check", "target": "plain", "sourceHandle": "otherwise"}
		]
	}`)
	engine := runtime.NewEngine(runtime.WithBranchLabels([]string{"match"}, []string{"otherwise"}))

	res, err := engine.Step(context.Background(), g, "check", domain.Scope{"vip": true})
	require.NoError(t, err)
	assert.Equal(t, "gold", res.Next)

	res, err = engine.Step(context.Background(), g, "check", domain.Scope{"vip": false})
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Next)
}

func TestEngine_UnknownOperator(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "check", "type": "condition", "data": {"variable": "x", "operator": "roughly"}}
		]
	}`)

	_, err := runtime.NewEngine().Step(context.Background(), g, "check", domain.Scope{"x": 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedGraph))
	assert.Contains(t, err.Error(), "check")
}

func TestEngine_SetVariable(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "set-count", "type": "set-variable", "data": {"variable": "count", "value": "{{input}}"}},
			{"id": "set-greeting", "type": "set-variable", "data": {"variable": "greeting", "value": "Hi {{name}}"}},
			{"id": "set-raw", "type": "set-variable", "data": {"variable": "tags", "value": "{{name}}"}}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "set-count"},
			{"id": "c2", "source": "set-count", "target": "set-greeting"}
		],
		"variables": {
			"count": {"defaultValue": 0, "type": "number"},
			"tags": {"defaultValue": [], "type": "list"}
		}
	}`)
	engine := runtime.NewEngine()
	ctx := context.Background()
	scope := domain.Scope{"input": "42", "name": "Ana"}

	res, err := engine.Step(ctx, g, "set-count", scope)
	require.NoError(t, err)
	assert.Equal(t, "set-greeting", res.Next)
	assert.Equal(t, float64(42), scope["count"], "value is coerced to the declared number type")

	res, err = engine.Step(ctx, g, "set-greeting", scope)
	require.NoError(t, err)
	assert.True(t, res.Terminal())
	assert.Equal(t, "Hi Ana", scope["greeting"])

	_, err = engine.Step(ctx, g, "set-raw", scope)
	require.NoError(t, err)
	assert.Equal(t, "Ana", scope["tags"], "a failed coercion keeps the raw value")
}

func TestEngine_UnknownKindEndsRun(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "img", "type": "action-send-image"},
			{"id": "after", "type": "action-send-message"}
		],
		"connections": [
			{"id": "c1", "source": "start", "target": "img"},
			{"id": "c2", "source": "img", "target": "after"}
		]
	}`)

	res, err := runtime.NewEngine().Step(context.Background(), g, "img", domain.Scope{})
	require.NoError(t, err)
	assert.True(t, res.Terminal())
	assert.Empty(t, res.Effects)
}

func TestEngine_CustomHandler(t *testing.T) {
	g := mustParse(t, `{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "img", "type": "action-send-image"}
		],
		"connections": [{"id": "c1", "source": "start", "target": "img"}]
	}`)

	handler := runtime.HandlerFunc(func(ctx context.Context, x *runtime.Execution) (runtime.StepResult, error) {
		next, err := x.Follow()
		return runtime.StepResult{
			Effects: []domain.Effect{{Type: "send_image", NodeID: x.Node.ID, Text: "x.png"}},
			Next:    next,
		}, err
	})
	engine := runtime.NewEngine(runtime.WithHandler("action-send-image", handler))

	res, err := engine.Step(context.Background(), g, "img", domain.Scope{})
	require.NoError(t, err)
	require.Len(t, res.Effects, 1)
	assert.Equal(t, domain.EffectType("send_image"), res.Effects[0].Type)
}

func TestEngine_LifecycleHooks(t *testing.T) {
	g := mustParse(t, welcomeGraph)

	var entered, left []string
	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			entered = append(entered, e.NodeID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			left = append(left, e.NodeID+"->"+e.Next)
		},
	}
	engine := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
	ctx := context.Background()
	scope := g.Defaults()

	_, err := engine.Step(ctx, g, "start", scope)
	require.NoError(t, err)
	_, err = engine.Step(ctx, g, "welcome", scope)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "welcome"}, entered)
	assert.Equal(t, []string{"start->welcome", "welcome->"}, left)
}
