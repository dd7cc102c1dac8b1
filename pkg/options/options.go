// Package options provides data structures and functions for configuring
// ApeDB. It defines the parameters that control where the database file
// lives, what permissions it is created with, how aggressively the AVL
// index rebalances, and how large the UUID pool is kept topped up.
package options

import "strings"

// Options defines the configuration parameters for an ApeDB instance.
type Options struct {
	// Specifies the base path where the database file will be stored.
	//
	// Default: "/var/lib/apedb"
	DataDir string `json:"dataDir"`

	// Name of the database file within DataDir.
	//
	// Default: "apedb.db"
	FileName string `json:"fileName"`

	// Permission bits the database file is created with.
	//
	// Default: 0600
	FilePerm uint32 `json:"filePerm"`

	// Laze controls how many completed AVL inserts accumulate before a
	// rebalancing pass walks the whole tree. Higher values trade
	// search-path length for fewer rebalance writes.
	//
	// Default: 8
	Laze uint8 `json:"laze"`

	// UUIDPoolSize is the number of pre-generated UUIDs kept in the pool,
	// so a Get can usually pop a cached UUID instead of generating one.
	//
	// Default: 64
	UUIDPoolSize int `json:"uuidPoolSize"`
}

// OptionFunc is a function type that modifies ApeDB's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies a predefined set of default configuration values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.FileName = opts.FileName
		o.FilePerm = opts.FilePerm
		o.Laze = opts.Laze
		o.UUIDPoolSize = opts.UUIDPoolSize
	}
}

// WithDataDir sets the primary data directory for ApeDB.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithFileName sets the database file's name within DataDir.
func WithFileName(name string) OptionFunc {
	return func(o *Options) {
		name = strings.TrimSpace(name)
		if name != "" {
			o.FileName = name
		}
	}
}

// WithFilePerm sets the permission bits the database file is created with.
func WithFilePerm(perm uint32) OptionFunc {
	return func(o *Options) {
		if perm != 0 {
			o.FilePerm = perm
		}
	}
}

// WithLaze sets the AVL rebalance threshold.
func WithLaze(laze uint8) OptionFunc {
	return func(o *Options) {
		o.Laze = laze
	}
}

// WithUUIDPoolSize sets the number of UUIDs kept pre-generated in the pool.
func WithUUIDPoolSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 {
			o.UUIDPoolSize = size
		}
	}
}
