package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"consenthub/internal/domain/auth"
	"consenthub/internal/platform/config"
)

type seedItem struct {
	key          string
	label        string
	channel      string
	defaultValue bool
}

type seedCategory struct {
	name        string
	description string
	items       []seedItem
}

var defaultPreferenceTaxonomy = []seedCategory{
	{
		name:        "Marketing",
		description: "Offers and promotions",
		items: []seedItem{
			{key: "marketing_email", label: "Marketing e-mail", channel: "email"},
			{key: "marketing_sms", label: "Marketing SMS", channel: "sms"},
			{key: "marketing_push", label: "Push promotions", channel: "push"},
		},
	},
	{
		name:        "Service",
		description: "Account and service notifications",
		items: []seedItem{
			{key: "service_billing", label: "Billing reminders", channel: "email", defaultValue: true},
			{key: "service_outage", label: "Outage alerts", channel: "sms", defaultValue: true},
		},
	},
	{
		name:        "Data sharing",
		description: "Use of data beyond the core service",
		items: []seedItem{
			{key: "sharing_partners", label: "Share with partners", channel: "all"},
			{key: "sharing_analytics", label: "Usage analytics", channel: "all", defaultValue: true},
		},
	},
}

// Seed makes sure roles, permissions, the bootstrap admin and the default
// preference taxonomy exist. It is safe to run on every start.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensurePermissions(ctx, pool); err != nil {
		return err
	}

	roleIDs, err := ensureRoles(ctx, pool)
	if err != nil {
		return err
	}

	if err := ensureRolePermissions(ctx, pool, roleIDs); err != nil {
		return err
	}

	if err := ensureAdminUser(ctx, pool, roleIDs[auth.RoleAdmin], cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}

	return ensurePreferenceTaxonomy(ctx, pool)
}

func ensurePermissions(ctx context.Context, pool *pgxpool.Pool) error {
	for _, perm := range auth.DefaultPermissions {
		_, err := pool.Exec(ctx, "INSERT INTO permissions (key) VALUES ($1) ON CONFLICT (key) DO NOTHING", perm)
		if err != nil {
			return err
		}
	}
	return nil
}

func ensureRoles(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	roleIDs := map[string]string{}
	for roleName := range auth.RolePermissions {
		var id string
		err := pool.QueryRow(ctx, `
    INSERT INTO roles (name) VALUES ($1)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
  `, roleName).Scan(&id)
		if err != nil {
			return nil, err
		}
		roleIDs[roleName] = id
	}
	return roleIDs, nil
}

func ensureRolePermissions(ctx context.Context, pool *pgxpool.Pool, roleIDs map[string]string) error {
	rows, err := pool.Query(ctx, "SELECT id, key FROM permissions")
	if err != nil {
		return err
	}
	permMap, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]string, error) {
		var pair [2]string
		err := row.Scan(&pair[0], &pair[1])
		return pair, err
	})
	if err != nil {
		return err
	}
	byKey := make(map[string]string, len(permMap))
	for _, pair := range permMap {
		byKey[pair[1]] = pair[0]
	}

	for roleName, perms := range auth.RolePermissions {
		roleID := roleIDs[roleName]
		for _, permKey := range perms {
			permID, ok := byKey[permKey]
			if !ok {
				return errors.New("permission not found: " + permKey)
			}
			_, err := pool.Exec(ctx, "INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roleID, permID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, roleID, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		zap.L().Warn("seed admin skipped: SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set")
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := pool.QueryRow(ctx, `
    INSERT INTO users (email, name, password_hash, role_id)
    VALUES ($1, 'Administrator', $2, $3)
    RETURNING id
  `, email, hash, roleID).Scan(&id); err != nil {
		return err
	}
	zap.L().Info("seed admin created", zap.String("userId", id), zap.String("email", email))
	return nil
}

func ensurePreferenceTaxonomy(ctx context.Context, pool *pgxpool.Pool) error {
	for _, cat := range defaultPreferenceTaxonomy {
		var categoryID string
		err := pool.QueryRow(ctx, `
    INSERT INTO preference_categories (name, description)
    VALUES ($1, $2)
    ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
  `, cat.name, cat.description).Scan(&categoryID)
		if err != nil {
			return err
		}
		for _, it := range cat.items {
			if _, err := pool.Exec(ctx, `
    INSERT INTO preference_items (category_id, key, label, channel, default_value)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (key) DO NOTHING
  `, categoryID, it.key, it.label, it.channel, it.defaultValue); err != nil {
				return err
			}
		}
	}
	return nil
}
