package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Kwargs) error { return nil }

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	assert.NotNil(t, registry)
	assert.Equal(t, 0, registry.Count())
	assert.Equal(t, "registry", registry.Name())
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register("send_email", noop)
	assert.NoError(t, err)
	assert.Equal(t, 1, registry.Count())
	assert.True(t, registry.Has("send_email"))
}

func TestRegistry_Register_LastWins(t *testing.T) {
	registry := NewRegistry()
	var calls []string

	registry.MustRegister("job", func(context.Context, Kwargs) error {
		calls = append(calls, "first")
		return nil
	})
	registry.MustRegister("job", func(context.Context, Kwargs) error {
		calls = append(calls, "second")
		return nil
	})

	assert.Equal(t, 1, registry.Count())
	fn, ok := registry.Lookup("job")
	require.True(t, ok)
	require.NoError(t, fn(context.Background(), nil))
	assert.Equal(t, []string{"second"}, calls)
}

func TestRegistry_Register_Invalid(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register("", noop)
	assert.Error(t, err)
	assert.True(t, hasCode(err, ErrCodeInvalid))

	err = registry.Register("nil_task", nil)
	assert.Error(t, err)

	assert.Panics(t, func() {
		registry.MustRegister("", noop)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister("job", noop)

	registry.Unregister("job")
	assert.False(t, registry.Has("job"))

	_, ok := registry.Lookup("job")
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister("zeta", noop)
	registry.MustRegister("alpha", noop)
	registry.MustRegister("mid", noop)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, registry.Names())
}

func TestDefaultRegistry(t *testing.T) {
	const name = "default_registry_test_task"
	defer DefaultRegistry.Unregister(name)

	require.NoError(t, Register(name, noop))
	assert.True(t, DefaultRegistry.Has(name))
	assert.Equal(t, "default", DefaultRegistry.Name())
}
