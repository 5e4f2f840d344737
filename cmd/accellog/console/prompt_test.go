package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	constraints := []string{No, Yes}
	tests := []struct {
		given    string
		expected string
	}{
		{"", No},
		{"y", Yes},
		{" Y ", Yes},
		{"n", No},
		{"yes please", No},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, normalize(test.given, constraints), "input %q", test.given)
	}
}
