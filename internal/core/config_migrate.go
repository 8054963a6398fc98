package core

import "fmt"

// CurrentConfigVersion is the schema version Save writes. Load lifts
// older files through the migration chain before parsing them.
const CurrentConfigVersion = 1

type configMigration struct {
	from    int
	migrate func(raw map[string]any) error
}

// Ordered steps; each transforms the raw YAML map from version `from`
// to `from+1`.
var configMigrations = []configMigration{
	{from: 0, migrate: migrateV0toV1},
}

// migrateConfig applies pending migrations in place and reports whether
// anything changed. Files without a version field count as version 0.
func migrateConfig(raw map[string]any) (version int, migrated bool, err error) {
	switch v := raw["version"].(type) {
	case int:
		version = v
	case float64:
		version = int(v)
	}

	start := version
	for _, m := range configMigrations {
		if m.from != version {
			continue
		}
		if err := m.migrate(raw); err != nil {
			return version, version != start,
				fmt.Errorf("migrate config v%d to v%d: %w", m.from, m.from+1, err)
		}
		version++
		raw["version"] = version
	}
	return version, version != start, nil
}

// migrateV0toV1 renames the keys pre-release builds used: vpn.path
// became vpn.client_path and auto.vpn became auto.use_vpn. A key that
// already exists under its new name wins.
func migrateV0toV1(raw map[string]any) error {
	renameKey(raw, "vpn", "path", "client_path")
	renameKey(raw, "auto", "vpn", "use_vpn")
	return nil
}

func renameKey(raw map[string]any, section, from, to string) {
	sec, ok := raw[section].(map[string]any)
	if !ok {
		return
	}
	v, ok := sec[from]
	if !ok {
		return
	}
	if _, exists := sec[to]; !exists {
		sec[to] = v
	}
	delete(sec, from)
}
