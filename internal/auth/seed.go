package auth

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"orggate/internal/policy"
)

type seedUser struct {
	Email        string `yaml:"email"`
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	Team         string `yaml:"team"`
	UID          string `yaml:"uid"`
	PasswordHash string `yaml:"password_hash"`
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

// SeedFromFile provisions users from a YAML file into the store. Hashes
// only; the file never carries plaintext secrets. Used by demo and
// in-memory deployments; PostgreSQL deployments provision via userctl.
func SeedFromFile(ctx context.Context, store Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read users file %s: %w", path, err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse users file %s: %w", path, err)
	}
	for i, su := range file.Users {
		role, err := policy.ParseRole(su.Role)
		if err != nil {
			return i, fmt.Errorf("user %s: %w", su.Email, err)
		}
		if su.PasswordHash == "" {
			return i, fmt.Errorf("user %s: %w: password_hash is required", su.Email, ErrInvalidInput)
		}
		u := &User{
			Email:        su.Email,
			Name:         su.Name,
			Role:         role,
			Team:         su.Team,
			UID:          su.UID,
			PasswordHash: su.PasswordHash,
			Status:       StatusActive,
		}
		if err := store.Create(ctx, u); err != nil {
			return i, fmt.Errorf("user %s: %w", su.Email, err)
		}
	}
	return len(file.Users), nil
}
