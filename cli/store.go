package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weave-labs/toolweave"
	"github.com/weave-labs/toolweave/builtin"
	"github.com/weave-labs/toolweave/registry"
)

// openRegistry builds a registry backed by the store named by the
// --store-path persistent flag, seeds the builtin tools, and hydrates
// persisted registrations. A ".json" path selects the flat-file store;
// anything else opens SQLite. The returned closer is never nil.
func openRegistry(cmd *cobra.Command) (*registry.Registry, func() error, error) {
	path, _ := cmd.Flags().GetString("store-path")

	store, closer, err := resolveStore(path)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(registry.WithStore(store))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := builtin.RegisterAll(ctx, reg); err != nil {
		closer()
		return nil, nil, fmt.Errorf("registering builtin tools: %w", err)
	}

	// Persisted registrations win over the fresh builtin records, so
	// builtin metrics accumulated in earlier runs survive. Refs with no
	// local callable are bound to a stub so they stay discoverable.
	if err := reg.Load(ctx, func(ref string) (toolweave.Tool, bool) {
		if t, ok := reg.Resolve(ref); ok {
			return t, true
		}
		return stubTool(ref), true
	}); err != nil {
		closer()
		return nil, nil, fmt.Errorf("loading registrations: %w", err)
	}

	return reg, closer, nil
}

func resolveStore(path string) (registry.Store, func() error, error) {
	noop := func() error { return nil }

	if strings.HasSuffix(path, ".json") {
		return registry.NewFileStore(path), noop, nil
	}

	if path == "" {
		var err error
		path, err = registry.DefaultSQLitePath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolving default store path: %w", err)
		}
	}

	store, err := registry.NewSQLiteStore(registry.SQLiteStoreConfig{DSN: path})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	return store, store.Close, nil
}

// stubTool stands in for a registered tool whose implementation lives in
// another process. Invoking it is always an error; it exists so persisted
// descriptors remain visible to list, search, and discovery.
func stubTool(ref string) toolweave.Tool {
	return toolweave.NewFuncTool(ref, "", func(context.Context, map[string]any) (map[string]any, error) {
		return nil, fmt.Errorf("cli: tool %q has no local implementation: %w", ref, toolweave.ErrToolNotFound)
	})
}
