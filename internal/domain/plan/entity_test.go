package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEnterpriseName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Enterprise", true},
		{"enterprise", true},
		{"Plano Enterprise Anual", true},
		{"ENTERPRISE PLUS", true},
		{"Básico", false},
		{"Profissional", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsEnterpriseName(tt.name), tt.name)
	}
}
