package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func testProcess(buf *bytes.Buffer) (*Process, *int) {
	code := -1
	p := &Process{
		Kind:   "worker",
		Config: &config.Config{App: config.AppConfig{Env: "test"}},
		Logger: logger.New(logger.Options{ServiceName: "worker", Output: buf}),
		exit:   func(c int) { code = c },
	}
	return p, &code
}

func TestInstanceIDPrefersOverride(t *testing.T) {
	t.Setenv(EnvInstanceID, " api-7 ")
	assert.Equal(t, "api-7", InstanceID("local"))

	t.Setenv(EnvInstanceID, "")
	assert.NotEmpty(t, InstanceID("local"))
}

func TestCloseRunsInReverseOrder(t *testing.T) {
	p, _ := testProcess(&bytes.Buffer{})
	var order []string
	p.Defer("database", func() error { order = append(order, "database"); return nil })
	p.Defer("redis", func() error { order = append(order, "redis"); return errors.New("already closed") })

	p.Close()
	p.Close()
	assert.Equal(t, []string{"redis", "database"}, order)
}

func TestMustExitsAfterClosing(t *testing.T) {
	var buf bytes.Buffer
	p, code := testProcess(&buf)
	closed := false
	p.Defer("database", func() error { closed = true; return nil })

	p.Must("redis", nil)
	assert.Equal(t, -1, *code)

	p.Must("redis", errors.New("dial tcp: refused"))
	assert.Equal(t, 1, *code)
	assert.True(t, closed)
	assert.Contains(t, buf.String(), "startup failed: redis")
}

func TestRunTreatsCancellationAsCleanStop(t *testing.T) {
	p, code := testProcess(&bytes.Buffer{})
	p.Run(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, -1, *code)

	p.Run(context.Background(), func(context.Context) error { return errors.New("boom") })
	assert.Equal(t, 1, *code)
}

func TestContextCarriesProcessFields(t *testing.T) {
	var buf bytes.Buffer
	p, _ := testProcess(&buf)
	ctx, stop := p.Context(map[string]any{"jobs": 3})
	defer stop()

	p.Logger.Info(ctx, "hello")
	require.Contains(t, buf.String(), `"serviceKind":"worker"`)
	assert.Contains(t, buf.String(), `"jobs":3`)
	assert.Contains(t, buf.String(), `"env":"test"`)
}
