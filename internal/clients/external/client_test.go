package external

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dnd5eentities "github.com/fadedpez/dnd5e-api/entities"
)

func TestToAPIFormat(t *testing.T) {
	assert.Equal(t, "longsword", toAPIFormat("longsword"))
	assert.Equal(t, "light-crossbow", toAPIFormat("Light_Crossbow"))
}

func TestConvertWeapon(t *testing.T) {
	weapon := &dnd5eentities.Weapon{
		Name:        "Rapier",
		WeaponRange: "Melee",
		Damage: &dnd5eentities.Damage{
			DamageDice: "1d8",
			DamageType: &dnd5eentities.ReferenceItem{Name: "Piercing"},
		},
		Properties: []*dnd5eentities.ReferenceItem{
			{Name: "Finesse"},
		},
	}

	ref := convertWeapon("rapier", weapon)
	assert.Equal(t, "rapier", ref.WeaponID)
	assert.Equal(t, "Rapier", ref.Name)
	assert.Equal(t, "1d8", ref.DamageDice)
	assert.Equal(t, "piercing", ref.DamageType)
	assert.True(t, ref.Finesse)
	assert.False(t, ref.Ranged)
}

func TestConvertWeaponRanged(t *testing.T) {
	weapon := &dnd5eentities.Weapon{
		Name:        "Shortbow",
		WeaponRange: "Ranged",
		Damage: &dnd5eentities.Damage{
			DamageDice: "1d6",
			DamageType: &dnd5eentities.ReferenceItem{Name: "Piercing"},
		},
	}

	ref := convertWeapon("shortbow", weapon)
	assert.True(t, ref.Ranged)
	assert.False(t, ref.Finesse)
}
