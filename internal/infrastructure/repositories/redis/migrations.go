package redis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schemaVersionKey = "creatorhub:schema:version"

type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs every migration newer than the stored schema version, in order
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	return migrate(ctx, client, schemaVersionKey, migrations(), logger)
}

func migrate(ctx context.Context, client *redis.Client, versionKey string, all []Migration, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client, versionKey)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range pendingMigrations(currentVersion, all) {
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := client.Set(ctx, versionKey, migration.Version, 0).Err(); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		currentVersion = migration.Version
	}

	if logger != nil {
		logger.Infow("schema is up to date", "version", currentVersion)
	}
	return nil
}

// pendingMigrations returns the migrations newer than current, oldest first.
func pendingMigrations(current int, all []Migration) []Migration {
	var pending []Migration
	for _, m := range all {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })
	return pending
}

func getSchemaVersion(ctx context.Context, client *redis.Client, versionKey string) (int, error) {
	val, err := client.Get(ctx, versionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func migrations() []Migration {
	return []Migration{
		{
			// Build the creator -> subscribers index from existing subscription hashes.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				iter := client.Scan(ctx, 0, subscriptionsPrefix+"*", 100).Iterator()
				for iter.Next(ctx) {
					key := iter.Val()
					subscriberID := strings.TrimPrefix(key, subscriptionsPrefix)
					creators, err := client.HKeys(ctx, key).Result()
					if err != nil {
						return err
					}
					for _, creatorID := range creators {
						if err := client.SAdd(ctx, creatorSubscribersPrefix+creatorID, subscriberID).Err(); err != nil {
							return err
						}
					}
				}
				return iter.Err()
			},
		},
	}
}
