package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config armazena todas as configurações do GoImóvel.
type Config struct {
	// Geral
	Port        string
	Environment string
	LogLevel    string

	// Armazenamento: "postgres" ou "memory"
	StorageDriver string

	// Banco de Dados (PostgreSQL)
	DatabaseURL   string
	DBTimeout     time.Duration
	MigrationsDir string

	// Cache (Redis); RedisAddr vazio desliga o cache
	RedisAddr string
	CacheTTL  time.Duration

	// Segurança (JWT)
	JWTSecretKey string
	TokenExpiry  time.Duration

	// Rate Limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	CORSAllowedOrigins []string

	// Expressão cron (com segundos) da reconciliação de limites; vazio desliga o job
	QuotaReconcileCron string
}

// fileConfig espelha as mesmas chaves das variáveis de ambiente no arquivo YAML.
type fileConfig struct {
	Port                 string `yaml:"port"`
	Env                  string `yaml:"env"`
	LogLevel             string `yaml:"log_level"`
	StorageDriver        string `yaml:"storage_driver"`
	DatabaseURL          string `yaml:"database_url"`
	DBTimeoutSec         string `yaml:"db_timeout_sec"`
	MigrationsDir        string `yaml:"migrations_dir"`
	RedisAddr            string `yaml:"redis_addr"`
	CacheTTLSec          string `yaml:"cache_ttl_sec"`
	JWTSecretKey         string `yaml:"jwt_secret_key"`
	JWTExpiryMin         string `yaml:"jwt_expiry_min"`
	RateLimitMaxRequests string `yaml:"rate_limit_max_requests"`
	RateLimitPeriodMin   string `yaml:"rate_limit_period_min"`
	CORSAllowedOrigins   string `yaml:"cors_allowed_origins"`
	QuotaReconcileCron   string `yaml:"quota_reconcile_cron"`
}

func (f fileConfig) values() map[string]string {
	return map[string]string{
		"PORT":                    f.Port,
		"ENV":                     f.Env,
		"LOG_LEVEL":               f.LogLevel,
		"STORAGE_DRIVER":          f.StorageDriver,
		"DATABASE_URL":            f.DatabaseURL,
		"DB_TIMEOUT_SEC":          f.DBTimeoutSec,
		"MIGRATIONS_DIR":          f.MigrationsDir,
		"REDIS_ADDR":              f.RedisAddr,
		"CACHE_TTL_SEC":           f.CacheTTLSec,
		"JWT_SECRET_KEY":          f.JWTSecretKey,
		"JWT_EXPIRY_MIN":          f.JWTExpiryMin,
		"RATE_LIMIT_MAX_REQUESTS": f.RateLimitMaxRequests,
		"RATE_LIMIT_PERIOD_MIN":   f.RateLimitPeriodMin,
		"CORS_ALLOWED_ORIGINS":    f.CORSAllowedOrigins,
		"QUOTA_RECONCILE_CRON":    f.QuotaReconcileCron,
	}
}

// source resolve uma chave: ambiente primeiro, depois o arquivo YAML.
type source struct {
	lookupEnv func(string) (string, bool)
	file      map[string]string
}

func (s source) get(key, defaultValue string) string {
	if v, ok := s.lookupEnv(key); ok && v != "" {
		return v
	}
	if v := s.file[key]; v != "" {
		return v
	}
	return defaultValue
}

// getOptional é como get, mas uma variável de ambiente presente e vazia
// prevalece sobre o arquivo e o default. "off" também desliga, útil no YAML.
func (s source) getOptional(key, defaultValue string) string {
	v, ok := s.lookupEnv(key)
	if !ok {
		v = s.get(key, defaultValue)
	}
	if strings.EqualFold(strings.TrimSpace(v), "off") {
		return ""
	}
	return v
}

func (s source) getInt(key string, defaultValue int) (int, error) {
	raw := s.get(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("valor de %s ('%s') não é um número inteiro válido", key, raw)
	}
	return v, nil
}

// LoadConfig carrega as configurações e encerra o processo em caso de erro.
func LoadConfig() *Config {
	cfg, err := Load(os.LookupEnv)
	if err != nil {
		log.Fatalf("❌ Erro de Configuração: %v", err)
	}
	return cfg
}

// Load monta a configuração a partir do ambiente (lookupEnv) e, se CONFIG_FILE
// estiver definido, do arquivo YAML indicado. O ambiente sempre prevalece.
func Load(lookupEnv func(string) (string, bool)) (*Config, error) {
	src := source{lookupEnv: lookupEnv, file: map[string]string{}}
	if path, ok := lookupEnv("CONFIG_FILE"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler CONFIG_FILE %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("falha ao interpretar CONFIG_FILE %s: %w", path, err)
		}
		src.file = fc.values()
	}

	cfg := &Config{
		Port:               src.get("PORT", "8080"),
		Environment:        src.get("ENV", "development"),
		LogLevel:           src.get("LOG_LEVEL", "info"),
		StorageDriver:      strings.ToLower(src.get("STORAGE_DRIVER", "postgres")),
		DatabaseURL:        src.get("DATABASE_URL", ""),
		MigrationsDir:      src.get("MIGRATIONS_DIR", "./sql"),
		RedisAddr:          src.get("REDIS_ADDR", ""),
		JWTSecretKey:       src.get("JWT_SECRET_KEY", ""),
		QuotaReconcileCron: src.getOptional("QUOTA_RECONCILE_CRON", "0 */30 * * * *"),
	}

	ints := []struct {
		key  string
		def  int
		unit time.Duration
		dst  *time.Duration
	}{
		{"DB_TIMEOUT_SEC", 5, time.Second, &cfg.DBTimeout},
		{"CACHE_TTL_SEC", 300, time.Second, &cfg.CacheTTL},
		{"JWT_EXPIRY_MIN", 60, time.Minute, &cfg.TokenExpiry},
		{"RATE_LIMIT_PERIOD_MIN", 1, time.Minute, &cfg.RateLimitPeriod},
	}
	for _, it := range ints {
		v, err := src.getInt(it.key, it.def)
		if err != nil {
			return nil, err
		}
		*it.dst = time.Duration(v) * it.unit
	}

	maxReq, err := src.getInt("RATE_LIMIT_MAX_REQUESTS", 100)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitMaxRequests = maxReq

	for _, origin := range strings.Split(src.get("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if o := strings.TrimSpace(origin); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("a variável DATABASE_URL deve ser definida quando STORAGE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER '%s' desconhecido (use postgres ou memory)", c.StorageDriver)
	}
	if c.JWTSecretKey == "" {
		return fmt.Errorf("a variável JWT_SECRET_KEY deve ser definida")
	}
	return nil
}
