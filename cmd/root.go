package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/email"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/ranking"
)

const (
	app = "jobmatch"
)

type Config struct {
	DatabaseURL string `mapstructure:"database-url"`
	RedisURL    string `mapstructure:"redis-url"`
	ListenAddr  string `mapstructure:"listen-addr"`
	UploadDir   string `mapstructure:"upload-dir"`

	// MasterKeyFile holds the key that unseals stored scraping credentials.
	MasterKeyFile string `mapstructure:"master-key-file"`

	RequeueIntervalMinutes int `mapstructure:"requeue-interval-minutes"`
	TopJobs                int `mapstructure:"top-jobs"`
	SearchLimit            int `mapstructure:"search-limit"`

	Aggregator *AggregatorConfig `mapstructure:"aggregator"`
	LinkedIn   *LinkedInConfig   `mapstructure:"linkedin"`
	AI         *AIConfig         `mapstructure:"ai"`
	SMTP       *email.Config     `mapstructure:"smtp"`
	Ranking    *ranking.Weights  `mapstructure:"ranking"`
}

type AggregatorConfig struct {
	APIURL     string `mapstructure:"api-url"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type LinkedInConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BaseURL          string `mapstructure:"base-url"`
	FailureThreshold int    `mapstructure:"failure-threshold"`

	// The session cookie is stored as an encrypted blob and decrypted
	// just-in-time before each scraping session.
	CookieCiphertext string `mapstructure:"cookie-ciphertext"`
	CookieNonce      string `mapstructure:"cookie-nonce"`
	CookieAuthTag    string `mapstructure:"cookie-auth-tag"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch finds, ranks and emails job postings matching a resume and stated intent",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Local development reads secrets from a .env file; absence is fine.
	_ = godotenv.Load()

	if err := viper.BindEnv("database-url", "DATABASE_URL"); err != nil {
		log.Fatalf("binding DATABASE_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("redis-url", "REDIS_URL"); err != nil {
		log.Fatalf("binding REDIS_URL environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the commands that talk to real backends.
	needed := false
	for _, c := range []*cobra.Command{serveCmd, runCmd, providerTestCmd, providerStatusCmd, providerResetCmd} {
		if c.CalledAs() != "" {
			needed = true
			break
		}
	}
	if !needed {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
