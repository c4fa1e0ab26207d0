package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKeyIsDeterministic(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{
		"payment_intent_id": "pi_123",
		"amount":            "100",
	}

	first := g.GenerateKey(ScopeRefund, params)
	second := g.GenerateKey(ScopeRefund, params)
	assert.Equal(t, first, second)
}

func TestGenerateKeyIsOrderIndependent(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeCapture, map[string]interface{}{
		"a": 1,
		"b": 2,
		"c": 3,
	})
	b := g.GenerateKey(ScopeCapture, map[string]interface{}{
		"c": 3,
		"a": 1,
		"b": 2,
	})
	assert.Equal(t, a, b)
}

func TestGenerateKeyCarriesScopePrefix(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"id": "x"}

	assert.True(t, strings.HasPrefix(g.GenerateKey(ScopeCapture, params), "capture-"))
	assert.True(t, strings.HasPrefix(g.GenerateKey(ScopeRefund, params), "refund-"))
	assert.True(t, strings.HasPrefix(g.GenerateKey(ScopeLegacyCharge, params), "legacy_charge-"))
}

func TestGenerateKeyVariesByScopeAndParams(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"payment_intent_id": "pi_123"}

	capture := g.GenerateKey(ScopeCapture, params)
	refund := g.GenerateKey(ScopeRefund, params)
	assert.NotEqual(t, capture, refund)

	other := g.GenerateKey(ScopeCapture, map[string]interface{}{"payment_intent_id": "pi_456"})
	assert.NotEqual(t, capture, other)
}

func TestValidateKey(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"payment_intent_id": "pi_123"}

	key := g.GenerateKey(ScopeRefund, params)
	assert.True(t, g.ValidateKey(ScopeRefund, params, key))
	assert.False(t, g.ValidateKey(ScopeCapture, params, key))
	assert.False(t, g.ValidateKey(ScopeRefund, map[string]interface{}{"payment_intent_id": "pi_456"}, key))
}
