package access_test

import (
	"testing"

	"github.com/blues/carbonledger/internal/access"
	"github.com/stretchr/testify/assert"
)

const validatorAddr = "KI6X3F5Y6CHH2MK4TA7RUVF43AXVGEAZN7TWT7BVNUU4JGQ5ENZUTA5CCA"

func TestFixedValidator_RoleOf(t *testing.T) {
	p := access.NewFixedValidator(validatorAddr)

	tests := []struct {
		name    string
		address string
		want    access.Role
	}{
		{"exact match", validatorAddr, access.RoleValidator},
		{"surrounding whitespace", "  " + validatorAddr + "\n", access.RoleValidator},
		{"different case", "ki6x3f5y6chh2mk4ta7ruvf43axvgeazn7twt7bvnuu4jgq5enzuta5cca", access.RoleParticipant},
		{"other address", "AAAA", access.RoleParticipant},
		{"empty", "", access.RoleParticipant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.RoleOf(tt.address))
		})
	}
}

func TestFixedValidator_EmptyValidatorGrantsNobody(t *testing.T) {
	p := access.NewFixedValidator("")
	assert.Equal(t, access.RoleParticipant, p.RoleOf(""))
	assert.Equal(t, access.RoleParticipant, p.RoleOf("   "))
}

func TestPolicyFunc(t *testing.T) {
	p := access.PolicyFunc(func(address string) access.Role {
		if address == "tester" {
			return access.RoleValidator
		}
		return access.RoleParticipant
	})
	assert.True(t, access.IsValidator(p, "tester"))
	assert.False(t, access.IsValidator(p, validatorAddr))
	assert.Equal(t, "validator", access.RoleValidator.String())
	assert.Equal(t, "participant", access.RoleParticipant.String())
}
