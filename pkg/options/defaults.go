package options

const (
	// DefaultDataDir specifies the default base directory where ApeDB will store its data file.
	DefaultDataDir = "/var/lib/apedb"

	// DefaultFileName is the default name given to the database file.
	DefaultFileName = "apedb.db"

	// DefaultFilePerm is the default permission mode for a newly created database file.
	DefaultFilePerm uint32 = 0600

	// DefaultLaze is the default number of completed inserts the AVL index
	// accumulates before walking the whole tree to rebalance.
	DefaultLaze uint8 = 8

	// DefaultUUIDPoolSize is the default number of pre-generated UUIDs kept in the pool.
	DefaultUUIDPoolSize = 64
)

// defaultOptions holds the default configuration settings for an ApeDB instance.
var defaultOptions = Options{
	DataDir:      DefaultDataDir,
	FileName:     DefaultFileName,
	FilePerm:     DefaultFilePerm,
	Laze:         DefaultLaze,
	UUIDPoolSize: DefaultUUIDPoolSize,
}

// NewDefaultOptions returns the default configuration settings for an ApeDB instance.
func NewDefaultOptions() Options {
	return defaultOptions
}
