package kv

import (
	"context"
	"fmt"
)

// Open returns the backend named by driver: "memory", "file" or "sqlite".
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return OpenFile(path)
	case "sqlite":
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", driver)
	}
}
