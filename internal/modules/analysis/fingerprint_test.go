package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_KeyOrderIndependent(t *testing.T) {
	var a, b map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(
		`{"ma_short": 9, "ma_long": 50, "nested": {"x": 1, "y": [1, 2, 3]}}`), &a))
	require.NoError(t, json.Unmarshal([]byte(
		`{"nested": {"y": [1, 2, 3], "x": 1}, "ma_long": 50, "ma_short": 9}`), &b))

	hashA, err := Fingerprint(a)
	require.NoError(t, err)
	hashB, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, hashA, hashB)
	assert.Len(t, hashA, 64)
}

func TestFingerprint_ValueChangesHash(t *testing.T) {
	hashA, err := Fingerprint(map[string]interface{}{"period": 14})
	require.NoError(t, err)
	hashB, err := Fingerprint(map[string]interface{}{"period": 15})
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
}

func TestFingerprint_StructAndMapAgree(t *testing.T) {
	type cfg struct {
		Period int     `json:"period"`
		Std    float64 `json:"std"`
	}

	hashStruct, err := Fingerprint(cfg{Period: 20, Std: 2})
	require.NoError(t, err)
	hashMap, err := Fingerprint(map[string]interface{}{"std": 2.0, "period": 20})
	require.NoError(t, err)

	assert.Equal(t, hashStruct, hashMap)
}

func TestFingerprint_ArrayOrderMatters(t *testing.T) {
	hashA, err := Fingerprint(map[string]interface{}{"rules": []string{"a", "b"}})
	require.NoError(t, err)
	hashB, err := Fingerprint(map[string]interface{}{"rules": []string{"b", "a"}})
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
}
