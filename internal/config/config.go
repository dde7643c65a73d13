package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	StoreID                  string
	InventoryCacheTTLSeconds int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	UPIDefaultPayee          string
	UPIPayeeName             string
	Currency                 string
	CurrencySymbol           string
	LabelBucket              LabelBucket
}

type LabelBucket struct {
	Name      string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

func (b LabelBucket) Enabled() bool {
	return b.Name != ""
}

// Load reads settings from the environment, a .env file in the working
// directory and, when CONFIG_FILE is set, a YAML file whose keys are the
// lower-cased variable names. Environment wins over the file.
func Load() Config {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("allowed_origin", "http://127.0.0.1:3000")
	v.SetDefault("redis_db", 0)
	v.SetDefault("default_store_id", "main-store")
	v.SetDefault("inventory_cache_ttl_seconds", 30)
	v.SetDefault("access_token_ttl_minutes", 480)
	v.SetDefault("upi_payee_name", "Vault")
	v.SetDefault("currency", "INR")
	v.SetDefault("currency_symbol", "Rs.")
	v.SetDefault("label_bucket_region", "auto")

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[config] WARN: config file %s not loaded: %v", path, err)
		}
	}

	cacheTTL := v.GetInt("inventory_cache_ttl_seconds")
	if cacheTTL < 1 {
		cacheTTL = 30
	}
	tokenTTL := v.GetInt("access_token_ttl_minutes")
	if tokenTTL < 1 {
		tokenTTL = 480
	}

	return Config{
		Port:                     v.GetString("port"),
		AllowedOrigin:            v.GetString("allowed_origin"),
		DatabaseURL:              v.GetString("database_url"),
		RedisAddr:                v.GetString("redis_addr"),
		RedisPassword:            v.GetString("redis_password"),
		RedisDB:                  v.GetInt("redis_db"),
		StoreID:                  v.GetString("default_store_id"),
		InventoryCacheTTLSeconds: cacheTTL,
		AuthSecret:               strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes:    tokenTTL,
		UPIDefaultPayee:          strings.TrimSpace(v.GetString("upi_default_payee")),
		UPIPayeeName:             v.GetString("upi_payee_name"),
		Currency:                 v.GetString("currency"),
		CurrencySymbol:           v.GetString("currency_symbol"),
		LabelBucket: LabelBucket{
			Name:      v.GetString("label_bucket"),
			Endpoint:  v.GetString("label_bucket_endpoint"),
			Region:    v.GetString("label_bucket_region"),
			AccessKey: v.GetString("label_bucket_access_key"),
			SecretKey: v.GetString("label_bucket_secret_key"),
		},
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}
