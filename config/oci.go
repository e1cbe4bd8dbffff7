package config

import (
	"path/filepath"

	"github.com/projecteru2/pullwatch/utils"
)

// EnsureDirs creates every directory the registry backend writes to.
func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(c.DBDir(), c.TempDir(), c.BlobsDir(), c.LayersDir())
}

// Derived path helpers.

func (c *Config) DBDir() string          { return filepath.Join(c.RootDir, "db") }
func (c *Config) TempDir() string        { return filepath.Join(c.RootDir, "temp") }
func (c *Config) BlobsDir() string       { return filepath.Join(c.RootDir, "blobs") }
func (c *Config) LayersDir() string      { return filepath.Join(c.RootDir, "layers") }
func (c *Config) ImageIndexFile() string { return filepath.Join(c.DBDir(), "images.json") }
func (c *Config) ImageIndexLock() string { return filepath.Join(c.DBDir(), "images.lock") }

// BlobPath is the compressed layer as served by the registry.
func (c *Config) BlobPath(digestHex string) string {
	return filepath.Join(c.BlobsDir(), digestHex+".blob")
}

// LayerPath is the uncompressed layer tar.
func (c *Config) LayerPath(digestHex string) string {
	return filepath.Join(c.LayersDir(), digestHex+".tar")
}
