package context_test

import (
	"context"
	"testing"

	appCtx "github.com/jd52dev/excursion/internal/pkg/context"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := appCtx.WithRequestID(context.Background(), " rid-1 ")
	assert.Equal(t, "rid-1", appCtx.GetRequestID(ctx))

	assert.Equal(t, "", appCtx.GetRequestID(appCtx.WithRequestID(context.Background(), "  ")))
}

func TestActor(t *testing.T) {
	_, ok := appCtx.GetActor(context.Background())
	assert.False(t, ok)

	ctx := appCtx.WithActor(context.Background(), appCtx.Actor{UserID: "u1", Role: "user"})
	a, ok := appCtx.GetActor(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", a.UserID)
	assert.Equal(t, "user", a.Role)
}
