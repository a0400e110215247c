package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	// FileName 是 cwd 下自动发现的配置文件名（可选）。
	FileName = "pgguide.yaml"
	// EnvPrefix 是环境变量前缀，例如 PGGUIDE_CACHE_BACKEND。
	EnvPrefix = "PGGUIDE"
)

const (
	DefaultAPIBaseURL   = "https://api.imdbapi.dev"
	DefaultCacheBackend = "memory"
	DefaultListen       = "127.0.0.1:8787"
	DefaultLogLevel     = "info"

	DefaultInitialDelay  = 2 * time.Second
	DefaultDebounceDelay = time.Second
	DefaultRetryDelay    = 2 * time.Second
)

// CLIArgs 是命令行可覆盖的字段；空字符串表示未指定。
type CLIArgs struct {
	ConfigPath string

	APIBaseURL   string
	ProxyURL     string
	CacheBackend string
	CacheDir     string
	Listen       string
	ResolverURL  string
	LogLevel     string

	// Verbose 等价于 log level=debug + development 编码。
	Verbose bool
}

// FileConfig 对应 pgguide.yaml 的解析结构。
type FileConfig struct {
	APIBaseURL  string       `yaml:"api_base_url"`
	Proxy       *ProxyConfig `yaml:"proxy"`
	Cache       *CacheConfig `yaml:"cache"`
	Listen      string       `yaml:"listen"`
	ResolverURL string       `yaml:"resolver_url"`
	Delays      *DelayConfig `yaml:"delays"`
	Log         *LogConfig   `yaml:"log"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type DelayConfig struct {
	Initial  string `yaml:"initial"`
	Debounce string `yaml:"debounce"`
	Retry    string `yaml:"retry"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development *bool  `yaml:"development"`
}

// EnvConfig 是 PGGUIDE_* 环境变量（由 envconfig 解析）。
type EnvConfig struct {
	APIBaseURL    string `envconfig:"API_BASE_URL"`
	ProxyURL      string `envconfig:"PROXY_URL"`
	CacheBackend  string `envconfig:"CACHE_BACKEND"`
	CacheDir      string `envconfig:"CACHE_DIR"`
	Listen        string `envconfig:"LISTEN"`
	ResolverURL   string `envconfig:"RESOLVER_URL"`
	InitialDelay  string `envconfig:"INITIAL_DELAY"`
	DebounceDelay string `envconfig:"DEBOUNCE_DELAY"`
	RetryDelay    string `envconfig:"RETRY_DELAY"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	LogDev        string `envconfig:"LOG_DEV"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Source 是实际读取的配置文件；未读取时为空。
	Source string

	APIBaseURL string
	ProxyURL   string

	CacheBackend string
	CacheDir     string

	Listen string
	// ResolverURL 为空表示 Page Agent 走进程内通道。
	ResolverURL string

	InitialDelay  time.Duration
	DebounceDelay time.Duration
	RetryDelay    time.Duration

	LogLevel       string
	LogDevelopment bool
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件与环境变量，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/pgguide.yaml（可选）
//
// 覆盖优先级（固定）：CLI > 配置文件 > 环境变量 PGGUIDE_* > 内置默认
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var env EnvConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("环境变量无效：%w", err)}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath = absCleanFrom(cwdAbs, p)
		required = true
	}
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	eff, err := merge(cwdAbs, cli, fc, env)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.Source = cfgPath
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, env EnvConfig) (EffectiveConfig, error) {
	var (
		proxy  ProxyConfig
		cache  CacheConfig
		delays DelayConfig
		logc   LogConfig
	)
	if fc.Proxy != nil {
		proxy = *fc.Proxy
	}
	if fc.Cache != nil {
		cache = *fc.Cache
	}
	if fc.Delays != nil {
		delays = *fc.Delays
	}
	if fc.Log != nil {
		logc = *fc.Log
	}

	eff := EffectiveConfig{
		APIBaseURL:   pick(cli.APIBaseURL, fc.APIBaseURL, env.APIBaseURL, DefaultAPIBaseURL),
		ProxyURL:     pick(cli.ProxyURL, proxy.URL, env.ProxyURL, ""),
		CacheBackend: strings.ToLower(pick(cli.CacheBackend, cache.Backend, env.CacheBackend, DefaultCacheBackend)),
		CacheDir:     pick(cli.CacheDir, cache.Dir, env.CacheDir, ""),
		Listen:       pick(cli.Listen, fc.Listen, env.Listen, DefaultListen),
		ResolverURL:  pick(cli.ResolverURL, fc.ResolverURL, env.ResolverURL, ""),
		LogLevel:     strings.ToLower(pick(cli.LogLevel, logc.Level, env.LogLevel, DefaultLogLevel)),
	}

	if err := validateHTTPURL("api_base_url", eff.APIBaseURL); err != nil {
		return EffectiveConfig{}, err
	}
	eff.APIBaseURL = strings.TrimRight(eff.APIBaseURL, "/")
	if eff.ProxyURL != "" {
		u, err := url.Parse(eff.ProxyURL)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 缺少 scheme 或 host：%q", eff.ProxyURL)
		}
	}
	if eff.ResolverURL != "" {
		if err := validateHTTPURL("resolver_url", eff.ResolverURL); err != nil {
			return EffectiveConfig{}, err
		}
	}

	switch eff.CacheBackend {
	case "memory":
	case "file", "sqlite":
		if eff.CacheDir == "" {
			eff.CacheDir = filepath.Join(cwdAbs, ".pgguide")
		}
		eff.CacheDir = absCleanFrom(cwdAbs, eff.CacheDir)
	default:
		return EffectiveConfig{}, fmt.Errorf("cache.backend 只能是 memory/file/sqlite，实际是 %q", eff.CacheBackend)
	}

	var err error
	if eff.InitialDelay, err = duration("delays.initial", pick("", delays.Initial, env.InitialDelay, ""), DefaultInitialDelay); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.DebounceDelay, err = duration("delays.debounce", pick("", delays.Debounce, env.DebounceDelay, ""), DefaultDebounceDelay); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.RetryDelay, err = duration("delays.retry", pick("", delays.Retry, env.RetryDelay, ""), DefaultRetryDelay); err != nil {
		return EffectiveConfig{}, err
	}

	if logc.Development != nil {
		eff.LogDevelopment = *logc.Development
	} else if v := strings.TrimSpace(env.LogDev); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s_LOG_DEV 无效：%q", EnvPrefix, v)
		}
		eff.LogDevelopment = b
	}
	if cli.Verbose {
		eff.LogLevel = "debug"
		eff.LogDevelopment = true
	}
	switch eff.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", eff.LogLevel)
	}
	return eff, nil
}

// pick 返回第一个非空值（已去空白）。
func pick(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func duration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%q", field, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s 不能为负数：%q", field, raw)
	}
	return d, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
