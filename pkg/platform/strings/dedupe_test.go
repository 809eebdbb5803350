package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("trims and removes duplicates preserving order", func(t *testing.T) {
		got := DedupeAndTrim([]string{"  broker-1:9092 ", "broker-2:9092", "broker-1:9092"})
		assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, got)
	})

	t.Run("drops empty and whitespace-only entries", func(t *testing.T) {
		got := DedupeAndTrim([]string{"", "   ", "a", ""})
		assert.Equal(t, []string{"a"}, got)
	})

	t.Run("empty input passes through", func(t *testing.T) {
		assert.Empty(t, DedupeAndTrim(nil))
		assert.Empty(t, DedupeAndTrim([]string{}))
	})

	t.Run("case differences are distinct entries", func(t *testing.T) {
		got := DedupeAndTrim([]string{"Foo", "foo"})
		assert.Equal(t, []string{"Foo", "foo"}, got)
	})
}
