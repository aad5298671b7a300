package conf

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the runtime configuration, loaded from (in order of increasing
// precedence) built-in defaults, an optional TOML config file, and
// environment variables with the UTILES_ prefix.
type Config struct {
	Log  Log
	Copy Copy
	Db   Db
}

// Log holds logging options.
type Log struct {
	Debug bool
}

// Copy holds defaults for the tile copy engine.
type Copy struct {
	BatchSize int
	Jobs      int
	Stream    bool
}

// Db holds defaults for new MBTiles archives.
type Db struct {
	PageSize int
	DbType   string
}

// Configuration is the global application configuration.
var Configuration Config

func setDefaultConfig() {
	viper.SetDefault("Log.Debug", false)
	viper.SetDefault("Copy.BatchSize", 1000)
	viper.SetDefault("Copy.Jobs", 1)
	viper.SetDefault("Copy.Stream", false)
	viper.SetDefault("Db.PageSize", 4096)
	viper.SetDefault("Db.DbType", "flat")
}

// InitConfig reads the configuration from defaults, an optional config file
// and UTILES_* environment variables (env wins over file).
func InitConfig(configFilename string, debug bool) {
	setDefaultConfig()

	viper.SetEnvPrefix(AppConfig.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFilename != "" {
		viper.SetConfigFile(configFilename)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatalf("Error reading config file: %v", err)
		}
		log.Infof("Using config file: %s", viper.ConfigFileUsed())
	}

	if err := viper.Unmarshal(&Configuration); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	if debug {
		Configuration.Log.Debug = true
	}
}

// DumpConfig writes the resolved configuration to the log.
func DumpConfig() {
	log.Debugf("Config: Log.Debug = %v", Configuration.Log.Debug)
	log.Debugf("Config: Copy.BatchSize = %d", Configuration.Copy.BatchSize)
	log.Debugf("Config: Copy.Jobs = %d", Configuration.Copy.Jobs)
	log.Debugf("Config: Copy.Stream = %v", Configuration.Copy.Stream)
	log.Debugf("Config: Db.PageSize = %d", Configuration.Db.PageSize)
	log.Debugf("Config: Db.DbType = %s", Configuration.Db.DbType)
}
