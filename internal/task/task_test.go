package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKwargs_Accessors(t *testing.T) {
	kwargs := Kwargs{
		"name":    "ada",
		"count":   float64(3),
		"ratio":   1.5,
		"enabled": true,
		"wait":    "250ms",
		"secs":    float64(2),
	}

	assert.True(t, kwargs.Has("name"))
	assert.False(t, kwargs.Has("missing"))
	assert.Equal(t, "ada", kwargs.String("name", ""))
	assert.Equal(t, "fallback", kwargs.String("count", "fallback"))
	assert.Equal(t, 3, kwargs.Int("count", 0))
	assert.Equal(t, 9, kwargs.Int("ratio", 9))
	assert.True(t, kwargs.Bool("enabled", false))
	assert.Equal(t, 250*time.Millisecond, kwargs.Duration("wait", 0))
	assert.Equal(t, 2*time.Second, kwargs.Duration("secs", 0))
	assert.Equal(t, time.Minute, kwargs.Duration("missing", time.Minute))
}

func TestRequired(t *testing.T) {
	kwargs := Kwargs{"to": "a@b.c", "n": 1}

	to, err := Required[string](kwargs, "to")
	assert.NoError(t, err)
	assert.Equal(t, "a@b.c", to)

	_, err = Required[string](kwargs, "missing")
	assert.Error(t, err)

	_, err = Required[string](kwargs, "n")
	assert.Error(t, err)
}
