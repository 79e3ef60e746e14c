// Package external fetches weapon reference data from the D&D 5e API,
// converting it to the engine's internal types.
package external

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fadedpez/dnd5e-api/clients/dnd5e"
	dnd5eentities "github.com/fadedpez/dnd5e-api/entities"

	"github.com/tavernkeep/dm-engine/internal/entities"
	"github.com/tavernkeep/dm-engine/internal/errors"
)

// Client fetches reference data from the external rules source
type Client interface {
	// GetWeapon fetches weapon data by id (e.g. "longsword")
	GetWeapon(ctx context.Context, weaponID string) (*entities.WeaponRef, error)
}

// Config contains configuration options for the external client
type Config struct {
	// BaseURL for the D&D 5e API (defaults to the public instance)
	BaseURL string
	// HTTPTimeout for API requests (defaults to 30 seconds)
	HTTPTimeout time.Duration
	// CacheTTL for the cached client (defaults to 24 hours)
	CacheTTL time.Duration
}

// Validate sets defaults for unset fields
func (cfg *Config) Validate() error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.dnd5eapi.co/api/2014/"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return nil
}

type client struct {
	dnd5eClient dnd5e.Interface
}

// toAPIFormat converts an internal id to API format
// e.g. "Light_Crossbow" -> "light-crossbow"
func toAPIFormat(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "_", "-"))
}

// New creates an external client backed by the D&D 5e API with caching
func New(cfg *Config) (Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseClient, err := dnd5e.NewDND5eAPI(&dnd5e.DND5eAPIConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create D&D 5e API client")
	}

	return &client{
		dnd5eClient: dnd5e.NewCachedClient(baseClient, cfg.CacheTTL),
	}, nil
}

func (c *client) GetWeapon(_ context.Context, weaponID string) (*entities.WeaponRef, error) {
	apiID := toAPIFormat(weaponID)

	slog.Info("fetching weapon from D&D 5e API", "weapon", weaponID, "api", apiID)
	equipment, err := c.dnd5eClient.GetEquipment(apiID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get weapon %s", weaponID)
	}

	weapon, ok := equipment.(*dnd5eentities.Weapon)
	if !ok {
		return nil, errors.NotFoundf("equipment %q is not a weapon", weaponID)
	}
	return convertWeapon(weaponID, weapon), nil
}

// convertWeapon maps API weapon data to the internal reference type
func convertWeapon(weaponID string, weapon *dnd5eentities.Weapon) *entities.WeaponRef {
	ref := &entities.WeaponRef{
		WeaponID: weaponID,
		Name:     weapon.Name,
		Ranged:   strings.EqualFold(weapon.WeaponRange, "Ranged"),
	}

	if weapon.Damage != nil {
		ref.DamageDice = weapon.Damage.DamageDice
		if weapon.Damage.DamageType != nil {
			ref.DamageType = strings.ToLower(weapon.Damage.DamageType.Name)
		}
	}

	for _, property := range weapon.Properties {
		if property != nil && strings.EqualFold(property.Name, "Finesse") {
			ref.Finesse = true
		}
	}
	return ref
}
