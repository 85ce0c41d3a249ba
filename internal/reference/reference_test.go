package reference

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alnumUpper = regexp.MustCompile(`^[A-Z0-9]+$`)

func TestNewGenerator_RequiresSecret(t *testing.T) {
	_, err := NewGenerator("")
	assert.Error(t, err)
}

func TestThirdPartyReference(t *testing.T) {
	g, err := NewGenerator("s3cret")
	require.NoError(t, err)

	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	a, err := g.ThirdPartyReference()
	require.NoError(t, err)
	b, err := g.ThirdPartyReference()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Regexp(t, alnumUpper, a)
	assert.GreaterOrEqual(t, len(a), minLength)

	issued, err := g.Issued(a)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(issued))
}

func TestThirdPartyReference_SaltMatters(t *testing.T) {
	a, err := NewGenerator("one")
	require.NoError(t, err)
	b, err := NewGenerator("two")
	require.NoError(t, err)

	ref, err := a.ThirdPartyReference()
	require.NoError(t, err)

	_, err = b.Issued(ref)
	assert.Error(t, err)
}

func TestThirdPartyReference_UniqueUnderConcurrency(t *testing.T) {
	g, err := NewGenerator("s3cret")
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := g.ThirdPartyReference()
			assert.NoError(t, err)
			mu.Lock()
			seen[ref] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 100)
}

func TestTransactionReference(t *testing.T) {
	g, err := NewGenerator("s3cret")
	require.NoError(t, err)

	ref := g.TransactionReference()
	assert.Regexp(t, `^T[A-Z2-7]{16}$`, ref)

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		seen[g.TransactionReference()] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}
