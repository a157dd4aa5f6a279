package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Vesting VestingConfig `mapstructure:"vesting"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

type VestingConfig struct {
	Owner          string        `mapstructure:"owner"`          // 管理员地址 (迁移 / 换签名人 / 紧急提取)
	Signer         string        `mapstructure:"signer"`         // 开池授权签名人地址
	Escrow         string        `mapstructure:"escrow"`         // 托管账户地址 (custody_mode=db 时使用)
	CustodyMode    string        `mapstructure:"custody_mode"`   // "memory" or "db"
	EventTopic     string        `mapstructure:"event_topic"`    // Outbox 投递的主题
	AuthMaxSkew    time.Duration `mapstructure:"auth_max_skew"`  // 请求签名允许的时间偏差
	PoolCacheTTL   time.Duration `mapstructure:"pool_cache_ttl"` // 池元数据缓存时间
	ReportSpec     string        `mapstructure:"report_spec"`    // 托管对账任务 cron 表达式
	KeystorePath   string        `mapstructure:"keystore_path"`
	DerivationPath string        `mapstructure:"derivation_path"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置, 例如 VESTING_SIGNER 覆盖 vesting.signer
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// PostgresDSN 拼接 gorm 使用的 DSN
func (c DBConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

// MigrateURL 拼接 golang-migrate 使用的 URL
func (c DBConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "vesting_user")
	viper.SetDefault("db.password", "vesting_password")
	viper.SetDefault("db.name", "vesting_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "vesting_audit_group")

	viper.SetDefault("vesting.custody_mode", "db")
	viper.SetDefault("vesting.event_topic", "vesting.events")
	viper.SetDefault("vesting.auth_max_skew", 5*time.Minute)
	viper.SetDefault("vesting.pool_cache_ttl", 10*time.Minute)
	viper.SetDefault("vesting.report_spec", "@every 1m")
	viper.SetDefault("vesting.keystore_path", "signer.json")
	viper.SetDefault("vesting.derivation_path", "m/44'/60'/0'/0/0")
}
