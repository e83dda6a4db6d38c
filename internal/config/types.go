// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（configs/common.yaml + configs/{env}.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件中（YAML 中不存储任何密码）。
//
// 环境：
//   - 开发: APP_ENV=dev (默认) → configs/dev.yaml + .env
//   - 测试: APP_ENV=test → configs/test.yaml
//   - 生产: APP_ENV=prod → configs/prod.yaml
package config

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	MinIO        MinIOConfig        `yaml:"minio"`
	Auth         AuthConfig         `yaml:"auth"`
	Registration RegistrationConfig `yaml:"registration"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port string `yaml:"port"`

	// AllowOrigins CORS 白名单；空列表表示放行所有来源
	AllowOrigins []string `yaml:"allow_origins"`

	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig HTTPS 配置；Enabled 为 true 且未提供证书时自动生成自签名证书
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	CertDir string `yaml:"cert_dir"` // 证书目录，默认 /etc/petmarket/certs
	Hosts   string `yaml:"hosts"`    // 自签名证书 SANs，逗号分隔
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mongodb"（默认）、"postgres" 或 "sqlite"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从环境变量读取（DB_PASSWORD / MONGO_ROOT_PASSWORD）
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

// RedisConfig Redis 缓存配置；Enabled 为 false 时注入空缓存
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL，优先于 host/port/db
}

// MinIOConfig MinIO 对象存储配置；Endpoint 为空时照片走内联存储
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`     // 默认 "petmarket"
	PublicURL string `yaml:"public_url"` // 对外照片 URL 前缀，如 https://cdn.example.com/petmarket
}

// AuthConfig 认证配置
// 注意：JWTSecret/AdminEmail/AdminPassword 只从环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret     string `yaml:"-"`         // 只从 JWT_SECRET 环境变量读取
	TokenTTL      string `yaml:"token_ttl"` // 会话令牌有效期，例如 "168h"
	AdminEmail    string `yaml:"-"`         // 只从 ADMIN_EMAIL 环境变量读取
	AdminPassword string `yaml:"-"`         // 只从 ADMIN_PASSWORD 环境变量读取
}

// RegistrationConfig 登记策略配置
type RegistrationConfig struct {
	// MinPhotos 登记时要求的最少照片数；0 表示不限制
	MinPhotos int `yaml:"min_photos"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	APIPort        string
	AllowOrigins   []string
	TLS            TLSConfig
	DatabaseDriver string // "mongodb", "postgres" or "sqlite"
	DatabaseURL    string
	DatabaseName   string // MongoDB 数据库名称
	RedisURL       string // 空串表示未启用缓存
	MinIO          MinIOConfig
	Auth           AuthConfig
	Registration   RegistrationConfig
}
