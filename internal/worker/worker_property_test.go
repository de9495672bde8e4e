package worker

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"yqhp/taskqueue/internal/task"
)

// TestRoundRobinCoverageProperty: 第 j 条消息 (从 0 开始) 总是转发给 slave j mod S，
// 且每个 slave 收到的消息保持发送顺序。
func TestRoundRobinCoverageProperty(t *testing.T) {
	runner := task.NewRunner(task.NewResolver(task.NewRegistry(), false), nil)

	rapid.Check(t, func(rt *rapid.T) {
		slaves := rapid.IntRange(1, 6).Draw(rt, "slaves")
		messages := rapid.IntRange(0, 40).Draw(rt, "messages")

		h := newHarness(rt, slaves, runner)
		h.start()
		defer h.stop(rt)

		for j := 0; j < messages; j++ {
			h.send(rt, "job", map[string]any{"seq": j})
		}

		for j := 0; j < messages; j++ {
			msg := receiveMessage(rt, h.slaves[j%slaves])
			require.Equal(rt, float64(j), msg.Kwargs["seq"])
		}
	})
}

// TestCursorWraparoundProperty: 转发 k 条消息后游标等于 k mod S。
func TestCursorWraparoundProperty(t *testing.T) {
	runner := task.NewRunner(task.NewResolver(task.NewRegistry(), false), nil)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("cursor equals forwarded count mod slave count", prop.ForAll(
		func(slaves, messages int) bool {
			h := newHarness(t, slaves, runner)
			h.start()
			defer h.stop(t)

			for j := 0; j < messages; j++ {
				h.send(t, "job", nil)
			}
			for j := 0; j < messages; j++ {
				receiveMessage(t, h.slaves[j%slaves])
			}

			c := h.cursor()
			return c == messages%slaves && c >= 0 && c < slaves
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
