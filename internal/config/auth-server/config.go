package auth_server_config

import (
	"time"

	"github.com/NordCoder/Gatekeeper/internal/auth"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
	"github.com/NordCoder/Gatekeeper/internal/repository/sqlite"
	"github.com/NordCoder/Gatekeeper/internal/security/password"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Storage struct {
	Driver string        `mapstructure:"driver"`
	SQLite sqlite.Config `mapstructure:"sqlite"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc OTEL) AsOTELConfig() obs.OTELConfig {
	return obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Password struct {
	Algorithm  string                  `mapstructure:"algorithm"`
	BcryptCost int                     `mapstructure:"bcrypt_cost"`
	Argon2id   password.Argon2idParams `mapstructure:"argon2id"`
}

func (p Password) AsHasherConfig() password.Config {
	return password.Config{Algorithm: p.Algorithm, BcryptCost: p.BcryptCost, Argon2id: p.Argon2id}
}

type Auth struct {
	Issuer            string        `mapstructure:"issuer"`
	AccessTTL         time.Duration `mapstructure:"access_ttl"`
	RefreshTTL        time.Duration `mapstructure:"refresh_ttl"`
	RefreshTokenBytes int           `mapstructure:"refresh_token_bytes"`
	ClockSkew         time.Duration `mapstructure:"clock_skew"`
	Roles             []string      `mapstructure:"roles"`
	PrivateKey        string        `mapstructure:"private_key"`
	PrivateKeyPath    string        `mapstructure:"private_key_path"`
	PublicKey         string        `mapstructure:"public_key"`
	PublicKeyPath     string        `mapstructure:"public_key_path"`
	Password          Password      `mapstructure:"password"`
}

func (a Auth) PrivateKeySource() auth.KeySource {
	return auth.KeySource{PEM: a.PrivateKey, Path: a.PrivateKeyPath}
}

func (a Auth) PublicKeySource() auth.KeySource {
	return auth.KeySource{PEM: a.PublicKey, Path: a.PublicKeyPath}
}

type Kafka struct {
	Enable           bool     `mapstructure:"enable"`
	Brokers          []string `mapstructure:"brokers"`
	Partitions       int      `mapstructure:"partitions"`
	EventsTopic      string   `mapstructure:"events_topic"`
	RevocationsTopic string   `mapstructure:"revocations_topic"`
	GroupID          string   `mapstructure:"group_id"`
}

type Outbox struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

type Sweeper struct {
	Enable   bool          `mapstructure:"enable"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	App     App       `mapstructure:"app"`
	Server  Server    `mapstructure:"server"`
	Storage Storage   `mapstructure:"storage"`
	DB      pg.Config `mapstructure:"db"`
	OTEL    OTEL      `mapstructure:"otel"`
	Log     Log       `mapstructure:"log"`
	Auth    Auth      `mapstructure:"auth"`
	Kafka   Kafka     `mapstructure:"kafka"`
	Outbox  Outbox    `mapstructure:"outbox"`
	Sweeper Sweeper   `mapstructure:"sweeper"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
