package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != "" {
		t.Fatalf("期望未读取配置文件，实际 Source=%q", eff.Source)
	}
	if eff.APIBaseURL != DefaultAPIBaseURL || eff.CacheBackend != DefaultCacheBackend || eff.Listen != DefaultListen {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.InitialDelay != 2*time.Second || eff.DebounceDelay != time.Second || eff.RetryDelay != 2*time.Second {
		t.Fatalf("延迟默认值不符合预期：%+v", eff)
	}
	if eff.LogLevel != "info" || eff.LogDevelopment {
		t.Fatalf("日志默认值不符合预期：%+v", eff)
	}
	if eff.ResolverURL != "" {
		t.Fatalf("默认应走进程内通道，实际 ResolverURL=%q", eff.ResolverURL)
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.yaml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_FileValues(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
api_base_url: http://127.0.0.1:9999/
proxy:
  url: http://127.0.0.1:7890
cache:
  backend: SQLite
  dir: data
delays:
  initial: 10ms
  debounce: 20ms
  retry: 30ms
log:
  level: warn
  development: true
`))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Source != filepath.Join(cwd, FileName) {
		t.Fatalf("Source=%q", eff.Source)
	}
	if eff.APIBaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("期望去掉末尾斜杠，实际=%q", eff.APIBaseURL)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("ProxyURL=%q", eff.ProxyURL)
	}
	if eff.CacheBackend != "sqlite" || eff.CacheDir != filepath.Join(cwd, "data") {
		t.Fatalf("缓存配置不符合预期：%+v", eff)
	}
	if eff.InitialDelay != 10*time.Millisecond || eff.DebounceDelay != 20*time.Millisecond || eff.RetryDelay != 30*time.Millisecond {
		t.Fatalf("延迟不符合预期：%+v", eff)
	}
	if eff.LogLevel != "warn" || !eff.LogDevelopment {
		t.Fatalf("日志配置不符合预期：%+v", eff)
	}
}

func TestLoadEffective_CacheTTLIsFixed(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("cache:\n  backend: memory\n  ttl: forever\n"))
	t.Setenv("PGGUIDE_CACHE_TTL", "0s")

	// 有效期固定为 24h，没有配置入口：ttl 字段与环境变量都不参与解析。
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.CacheBackend != "memory" {
		t.Fatalf("CacheBackend=%q", eff.CacheBackend)
	}
}

func TestLoadEffective_MergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("listen: 127.0.0.1:1111\ncache:\n  backend: file\n"))
	t.Setenv("PGGUIDE_LISTEN", "127.0.0.1:2222")
	t.Setenv("PGGUIDE_CACHE_BACKEND", "sqlite")
	t.Setenv("PGGUIDE_LOG_LEVEL", "error")
	t.Setenv("PGGUIDE_RESOLVER_URL", "http://127.0.0.1:3333")

	// 配置文件 > 环境变量；环境变量 > 默认。
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Listen != "127.0.0.1:1111" || eff.CacheBackend != "file" {
		t.Fatalf("配置文件应覆盖环境变量：%+v", eff)
	}
	if eff.LogLevel != "error" || eff.ResolverURL != "http://127.0.0.1:3333" {
		t.Fatalf("环境变量应覆盖默认值：%+v", eff)
	}
	if eff.CacheDir != filepath.Join(cwd, ".pgguide") {
		t.Fatalf("file 后端默认目录不符合预期：%q", eff.CacheDir)
	}

	// CLI 覆盖一切。
	eff2, err := LoadEffective(cwd, CLIArgs{Listen: "127.0.0.1:4444", CacheBackend: "memory", Verbose: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff2.Listen != "127.0.0.1:4444" || eff2.CacheBackend != "memory" {
		t.Fatalf("CLI 应覆盖配置文件：%+v", eff2)
	}
	if eff2.LogLevel != "debug" || !eff2.LogDevelopment {
		t.Fatalf("--verbose 应打开 debug：%+v", eff2)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"broken yaml":     "cache: [",
		"bad backend":     "cache:\n  backend: redis\n",
		"negative delay":  "delays:\n  retry: -1s\n",
		"bad api url":     "api_base_url: ftp://x\n",
		"relative api":    "api_base_url: /only/path\n",
		"proxy no host":   "proxy:\n  url: 127.0.0.1\n",
		"bad resolver":    "resolver_url: nope\n",
		"bad log level":   "log:\n  level: trace\n",
		"bad proxy parse": "proxy:\n  url: http://[::1\n",
	}
	for name, body := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, FileName), []byte(body))
		_, err := LoadEffective(cwd, CLIArgs{})
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", name, ErrCodeInvalid, err, Code(err))
		}
	}
}

func TestLoadEffective_InvalidEnv(t *testing.T) {
	cwd := t.TempDir()
	t.Setenv("PGGUIDE_LOG_DEV", "maybe")

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigPath(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, "etc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "custom.yaml"), []byte("listen: 0.0.0.0:9000\n"))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "etc/custom.yaml"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Listen != "0.0.0.0:9000" || eff.Source != filepath.Join(dir, "custom.yaml") {
		t.Fatalf("eff=%+v", eff)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
