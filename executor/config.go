package executor

const (
	// DefaultStoreName is the file name used by the load command.
	DefaultStoreName = "sqlbridge.db"

	// DefaultBusyTimeout is the SQLite busy timeout in seconds.
	DefaultBusyTimeout = 5

	dirPermissions = 0750
	msPerSecond    = 1000
)

// Config controls where managed stores live and how stores are opened.
type Config struct {
	// StoreDir is the directory that holds the managed store returned by load.
	// It is created on first use.
	StoreDir string

	// StoreName is the managed store's file name inside StoreDir.
	StoreName string

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

func (c Config) withDefaults() Config {
	if c.StoreDir == "" {
		c.StoreDir = "."
	}
	if c.StoreName == "" {
		c.StoreName = DefaultStoreName
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = DefaultBusyTimeout
	}
	return c
}
