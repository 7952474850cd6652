package manifest

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorSeedCountsAsFirstWrite(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Seed(New(Entry{"test1", "test2"}, Entry{"one.js", "stale.js"})))
	require.NoError(t, acc.Add("one.js", "one.js"))
	require.NoError(t, acc.Add("two.js", "two.js"))

	snap := acc.Snapshot()
	assert.Equal(t, []string{"test1", "one.js", "two.js"}, snap.Keys())
	v, _ := snap.Get("one.js")
	assert.Equal(t, "one.js", v, "asset entries take precedence over seed data")
}

func TestAccumulatorSeedOnce(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Seed(nil))
	err := acc.Seed(New(Entry{"a", "b"}))
	assert.True(t, errors.Is(err, ErrAlreadySeeded))
}

func TestAccumulatorSeedAfterAdd(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Add("one.js", "one.js"))
	assert.ErrorIs(t, acc.Seed(New()), ErrAlreadySeeded)
}

func TestAccumulatorReplaceWithZeroManifest(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Replace(&Manifest{}))
	require.NoError(t, acc.Add("main.js", "main.js"))
	acc.Live().Set("extra.js", "extra.js")

	assert.Equal(t, []string{"main.js", "extra.js"}, acc.Freeze().Keys())
}

func TestAccumulatorFreeze(t *testing.T) {
	acc := NewAccumulator()
	require.NoError(t, acc.Add("main.js", "main.js"))

	final := acc.Freeze()
	assert.True(t, acc.Frozen())
	assert.Equal(t, 1, final.Len())
	assert.ErrorIs(t, acc.Add("late.js", "late.js"), ErrFrozen)
	assert.ErrorIs(t, acc.Replace(New()), ErrFrozen)
}

func TestAccumulatorConcurrentAdds(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for member := 0; member < 4; member++ {
		wg.Add(1)
		go func(member int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = acc.Add(fmt.Sprintf("m%d-%d.js", member, i), "x")
			}
		}(member)
	}
	wg.Wait()
	assert.Equal(t, 200, acc.Len())
}

func TestAccumulatorPerMemberOrderPreserved(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for _, member := range []string{"a", "b"} {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = acc.Add(fmt.Sprintf("%s%02d", member, i), member)
			}
		}(member)
	}
	wg.Wait()

	last := map[string]string{}
	for _, k := range acc.Snapshot().Keys() {
		prefix := k[:1]
		if prev, ok := last[prefix]; ok {
			assert.Less(t, prev, k)
		}
		last[prefix] = k
	}
}
