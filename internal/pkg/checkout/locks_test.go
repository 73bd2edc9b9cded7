package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/sharecode"
)

func TestBindSessionRejectsProvisionalRef(t *testing.T) {
	ref, err := sharecode.NewCheckoutRef()
	require.NoError(t, err)

	m := NewLockManager(nil)
	err = m.BindSession(1, 2, ref)
	assert.Error(t, err)
}
