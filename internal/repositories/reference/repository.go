// Package reference provides in-memory monster and weapon reference
// tables for the combat engine. Campaign loaders can replace or extend
// the built-in SRD entries; the external client can serve weapons the
// table does not carry.
package reference

import (
	"context"
	"sync"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
)

// Repository serves monster stat blocks and weapon reference data
type Repository struct {
	mu       sync.RWMutex
	monsters map[string]*entities.MonsterStatBlock
	weapons  map[string]*entities.WeaponRef
}

// New creates a repository seeded with the built-in entries
func New() *Repository {
	r := &Repository{
		monsters: make(map[string]*entities.MonsterStatBlock),
		weapons:  make(map[string]*entities.WeaponRef),
	}
	for _, monster := range builtinMonsters {
		r.monsters[monster.MonsterID] = monster
	}
	for _, weapon := range builtinWeapons {
		r.weapons[weapon.WeaponID] = weapon
	}
	return r
}

// AddMonster registers or replaces a monster stat block
func (r *Repository) AddMonster(monster *entities.MonsterStatBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monsters[monster.MonsterID] = monster
}

// AddWeapon registers or replaces a weapon
func (r *Repository) AddWeapon(weapon *entities.WeaponRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weapons[weapon.WeaponID] = weapon
}

// GetMonster returns a copy of a monster stat block
func (r *Repository) GetMonster(_ context.Context, monsterID string) (*entities.MonsterStatBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	monster, ok := r.monsters[monsterID]
	if !ok {
		return nil, errors.NotFoundf("monster %q not found", monsterID)
	}

	// Copy so callers cannot mutate the table
	block := *monster
	block.Actions = append([]entities.MonsterAction(nil), monster.Actions...)
	return &block, nil
}

// GetWeapon returns a copy of a weapon
func (r *Repository) GetWeapon(_ context.Context, weaponID string) (*entities.WeaponRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	weapon, ok := r.weapons[weaponID]
	if !ok {
		return nil, errors.NotFoundf("weapon %q not found", weaponID)
	}

	ref := *weapon
	return &ref, nil
}
