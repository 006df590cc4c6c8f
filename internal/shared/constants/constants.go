package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultMaxInputBytes caps how much markup a single scan inspects.
	DefaultMaxInputBytes = 2 << 20
	// DefaultFailUnder disables the CLI score gate.
	DefaultFailUnder = 0
	// DefaultHistoryLimit is how many history rows list commands show.
	DefaultHistoryLimit = 20
	// HistoryPruneInterval is how often the history store drops expired rows.
	HistoryPruneInterval = time.Hour
)
