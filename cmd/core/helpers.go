package core

import (
	"context"
	"fmt"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/projecteru2/pullwatch/catalog"
	"github.com/projecteru2/pullwatch/config"
	imagebackend "github.com/projecteru2/pullwatch/images"
	"github.com/projecteru2/pullwatch/images/registry"
)

// ReleaseTimeout bounds how long a command waits for progress tasks to
// wind down before exiting.
const ReleaseTimeout = 5 * time.Second

// BaseHandler provides shared config access for all command handlers.
type BaseHandler struct {
	ConfProvider func() *config.Config
}

// Init returns the command context and validated config in one call.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, err
	}
	return CommandContext(cmd), conf, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// InitBackends initializes every image store. The registry store is also
// returned on its own since it is the only one that can pull.
func InitBackends(ctx context.Context, conf *config.Config) ([]imagebackend.Images, *registry.Registry, error) {
	reg, err := registry.New(ctx, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("init registry backend: %w", err)
	}
	return []imagebackend.Images{reg}, reg, nil
}

// NewCatalog builds an image catalog over backends.
func NewCatalog(ctx context.Context, backends []imagebackend.Images) *catalog.Catalog {
	listers := make([]catalog.Lister, len(backends))
	for i, b := range backends {
		listers[i] = b
	}
	return catalog.New(ctx, listers...)
}

func FormatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}
