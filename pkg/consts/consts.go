package consts

import (
	"os"
	"time"
)

const (
	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// DefaultConfigFile is the project file read when --config is not given
	DefaultConfigFile = "bluegreen.yaml"

	// DefaultWorkers is the size of the concurrent DDL executor pool
	DefaultWorkers = 20

	// DefaultStagingSuffix is appended to the production database name when
	// neither a staging database nor a suffix is supplied
	DefaultStagingSuffix = "STAGING"

	// DefaultDrainInterval is how long each drain iteration waits before
	// checking for the staging database again
	DefaultDrainInterval = 60 * time.Second

	// DefaultExecutable is the Transformation Runner binary
	DefaultExecutable = "dbt"

	// DefaultProjectDir is the working directory of the Transformation Runner
	DefaultProjectDir = "."

	// DefaultQueryTag prefixes the query tag set on every warehouse session
	DefaultQueryTag = "bluegreen"

	// MainDatabaseEnv is consulted when --production-database is not set
	MainDatabaseEnv = "MAIN_DATABASE"

	// ConfigEnv overrides the location of the project file
	ConfigEnv = "BLUEGREEN_CONFIG"
)
