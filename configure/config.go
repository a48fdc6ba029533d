package configure

import (
	"bytes"
	"encoding/json"
	"strings"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/joho/godotenv"
	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ServerCfg struct {
	Level           string  `mapstructure:"level" json:"level"`
	ConfigFile      string  `mapstructure:"config_file" json:"config_file"`
	ListenerNetwork string  `mapstructure:"listener_network" json:"listener_network"`
	ListenerAddress string  `mapstructure:"listener_address" json:"listener_address"`
	RedisURI        string  `mapstructure:"redis_uri" json:"redis_uri"`
	MongoURI        string  `mapstructure:"mongo_uri" json:"mongo_uri"`
	MongoDB         string  `mapstructure:"mongo_db" json:"mongo_db"`
	JWTSecret       string  `mapstructure:"jwt_secret" json:"jwt_secret"`
	VoteRateLimit   float64 `mapstructure:"vote_rate_limit" json:"vote_rate_limit"`
	VoteRateBurst   int     `mapstructure:"vote_rate_burst" json:"vote_rate_burst"`
	ExitCode        int     `mapstructure:"exit_code" json:"exit_code"`
}

// default config
var defaultConf = ServerCfg{
	ConfigFile:      "config.yaml",
	ListenerNetwork: "tcp",
	ListenerAddress: ":3000",
	MongoDB:         "civic",
	VoteRateLimit:   1,
	VoteRateBurst:   5,
}

var Config = viper.New()

func initLog() {
	if l, err := log.ParseLevel(Config.GetString("level")); err == nil {
		log.SetLevel(l)
	}
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "category"},
	})
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Load reads defaults, flags, the config file, a .env file and the environment, in
// that order of precedence (last wins). It must run before anything reads Config.
func Load(args []string) ServerCfg {
	// Default config
	b, _ := json.Marshal(defaultConf)
	defaults := viper.New()
	defaults.SetConfigType("json")
	checkErr(defaults.ReadConfig(bytes.NewReader(b)))
	checkErr(Config.MergeConfigMap(defaults.AllSettings()))

	// Flags
	flags := pflag.NewFlagSet("civic", pflag.ContinueOnError)
	flags.String("config_file", defaultConf.ConfigFile, "configure filename")
	flags.String("level", "info", "Log level")
	flags.String("listener_network", defaultConf.ListenerNetwork, "Network for the http listener.")
	flags.String("listener_address", defaultConf.ListenerAddress, "Address for the http listener.")
	flags.String("redis_uri", "", "Address for the redis server.")
	flags.String("mongo_uri", "", "Address for the mongodb server.")
	flags.String("mongo_db", defaultConf.MongoDB, "Database for the mongodb connection.")
	flags.String("jwt_secret", "", "HMAC secret used to verify bearer tokens.")
	flags.Float64("vote_rate_limit", defaultConf.VoteRateLimit, "Votes per second allowed per viewer.")
	flags.Int("vote_rate_burst", defaultConf.VoteRateBurst, "Vote burst allowed per viewer.")
	flags.Int("exit_code", 0, "Status code for successful and graceful shutdown, [0-125].")
	checkErr(flags.Parse(args))
	changed := map[string]interface{}{}
	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})
	checkErr(Config.MergeConfigMap(changed))

	// File
	Config.SetConfigFile(Config.GetString("config_file"))
	Config.AddConfigPath(".")
	if err := Config.MergeInConfig(); err != nil {
		log.Warning(err)
		log.Info("Using default config")
	}

	// .env only fills variables that are not already set in the process environment
	if err := godotenv.Load(); err != nil {
		log.Debugf("dotenv, err=%v", err)
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	Config.SetEnvKeyReplacer(replacer)
	Config.AllowEmptyEnv(true)
	Config.AutomaticEnv()
	for _, key := range defaults.AllKeys() {
		checkErr(Config.BindEnv(key))
	}

	// Log
	initLog()

	// Print final config
	c := ServerCfg{}
	checkErr(Config.Unmarshal(&c))
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))

	return c
}
