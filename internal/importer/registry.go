package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"streetmaint/internal/config"
)

// Builder constructs one importer from its feed settings. The static map
// below is the full set of known importer identities; configuration selects
// which of them are activated.
type Builder func(ctx context.Context, deps Deps, cfg config.ImporterConfig) (Importer, error)

func Builders() map[string]Builder {
	return map[string]Builder{
		"kuntoturku": NewKuntoTurku,
		"mapon":      NewMapon,
		"gtfsrt":     NewGTFSRT,
	}
}

// Registry is the explicit importer registry, constructed once at process
// start and handed to the scheduler by reference.
type Registry struct {
	byName map[string]Importer
	names  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Importer)}
}

func (r *Registry) Register(imp Importer) error {
	if _, ok := r.byName[imp.Name()]; ok {
		return fmt.Errorf("importer %q already registered", imp.Name())
	}
	r.byName[imp.Name()] = imp
	r.names = append(r.names, imp.Name())
	return nil
}

func (r *Registry) Get(name string) Importer {
	return r.byName[name]
}

// All returns the registered importers in registration order.
func (r *Registry) All() []Importer {
	out := make([]Importer, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// BuildRegistry instantiates every configured importer. A configuration error
// is fatal for that importer only: it is reported and the importer is not
// registered; the process continues with the rest.
func BuildRegistry(ctx context.Context, deps Deps, cfgs map[string]config.ImporterConfig, logger *zap.Logger) *Registry {
	registry := NewRegistry()
	builders := Builders()

	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		builder, ok := builders[name]
		if !ok {
			logger.Error("unknown importer in configuration", zap.String("importer", name))
			continue
		}
		imp, err := builder(ctx, deps, cfgs[name])
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				logger.Error("importer misconfigured, not registered", zap.Error(cfgErr))
			} else {
				logger.Error("importer construction failed, not registered",
					zap.String("importer", name), zap.Error(err))
			}
			continue
		}
		if err := registry.Register(imp); err != nil {
			logger.Error("importer registration failed", zap.Error(err))
		}
	}
	return registry
}
