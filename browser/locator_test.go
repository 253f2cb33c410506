package browser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLocatorMap_JSONPreservesOrder(t *testing.T) {
	var m LocatorMap
	require.NoError(t, json.Unmarshal([]byte(`{"price":".item .price","title":".item h3","sku":"[data-sku]"}`), &m))

	assert.Equal(t, []string{"price", "title", "sku"}, m.Fields())
	assert.Equal(t, ".item .price", m[0].Selector)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"price":".item .price","title":".item h3","sku":"[data-sku]"}`, string(out))
}

func TestLocatorMap_YAMLPreservesOrder(t *testing.T) {
	var m LocatorMap
	require.NoError(t, yaml.Unmarshal([]byte("zeta: .z\nalpha: .a\nmid: .m\n"), &m))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Fields())

	out, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "zeta: .z\nalpha: .a\nmid: .m\n", string(out))
}

func TestLocatorMap_Validate(t *testing.T) {
	tests := []struct {
		name    string
		m       LocatorMap
		wantErr error
	}{
		{name: "empty map is valid", m: LocatorMap{}},
		{name: "valid", m: Locators("a", ".a", "b", ".b")},
		{name: "duplicate", m: Locators("a", ".a", "a", ".b"), wantErr: ErrDuplicateField},
		{name: "empty field", m: Locators("", ".a"), wantErr: ErrInvalidLocator},
		{name: "empty selector", m: Locators("a", ""), wantErr: ErrInvalidLocator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLocatorMap_UnmarshalRejectsDuplicates(t *testing.T) {
	var m LocatorMap
	err := json.Unmarshal([]byte(`{"a":".x","a":".y"}`), &m)
	assert.ErrorIs(t, err, ErrDuplicateField)

	err = yaml.Unmarshal([]byte("a: .x\nb: [1, 2]\n"), &m)
	assert.Error(t, err)
}

func TestLocators_OddArgsPanics(t *testing.T) {
	assert.Panics(t, func() { Locators("a") })
}
