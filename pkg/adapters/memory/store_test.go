package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMemoryRunStore_Contract(t *testing.T) {
	ports.RunRunStoreContract(t, memory.NewRunStore())
}

func TestMemoryBreakpointStore_Contract(t *testing.T) {
	ports.RunBreakpointStoreContract(t, memory.NewBreakpointStore())
}

func TestRecorder(t *testing.T) {
	r := memory.NewRecorder()
	ctx := context.Background()

	_ = r.Dispatch(ctx, "bot", []domain.Effect{domain.SendMessage("a", "one")})
	_ = r.Dispatch(ctx, "bot", []domain.Effect{{Type: "send_image", NodeID: "b"}, domain.SendMessage("c", "two")})

	assert.Len(t, r.Effects("bot"), 3)
	assert.Equal(t, []string{"one", "two"}, r.Messages("bot"))

	r.Reset("bot")
	assert.Empty(t, r.Effects("bot"))
}
