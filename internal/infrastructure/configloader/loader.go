package configloader

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

const (
	defaultConfPath   = "configs"
	envConfPath       = "CONF_PATH"
	envServiceName    = "SERVICE_NAME"
	envServiceVersion = "SERVICE_VERSION"
	envAppEnv         = "APP_ENV"
	envDatabaseURL    = "DATABASE_URL"
	envStorageBucket  = "STORAGE_BUCKET"
	envPubSubEmulator = "PUBSUB_EMULATOR_HOST"
)

var envFileNames = []string{".env.local", ".env"}

// Params 包含构造配置所需的运行时输入参数。
type Params struct {
	ConfPath string
}

// ServiceMetadata 保存服务标识信息，供日志和可观测性组件使用。
type ServiceMetadata struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// Loader 聚合加载完成的配置与服务元信息，供 Wire 注入。
type Loader struct {
	Config  *RuntimeConfig
	Service ServiceMetadata
}

// BuildError 捕获配置构建过程中的上下文错误信息。
type BuildError struct {
	Stage string
	Path  string
	Err   error
}

// Error 实现 error 接口，提供包含上下文的错误信息。
func (e BuildError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("config %s at %q: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

// Unwrap 暴露底层错误，支持 errors.Is/As 链式查询。
func (e BuildError) Unwrap() error {
	return e.Err
}

// ParseConfPath 从命令行参数解析 -conf 标志。
func ParseConfPath(fs *flag.FlagSet, args []string) (string, error) {
	conf := fs.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return *conf, nil
}

// Build 从配置文件构建 Loader：
// 1. 解析配置路径（显式传入 > CONF_PATH > 默认 configs/）
// 2. best-effort 加载 .env 文件
// 3. 加载 YAML 并扫描到 RuntimeConfig
// 4. 应用环境变量覆盖、补默认值、显式校验
func Build(params Params) (*Loader, error) {
	confPath := ResolveConfPath(params.ConfPath)
	loadEnvFiles(confPath)

	cfg, err := loadRuntimeConfig(confPath)
	if err != nil {
		return nil, err
	}

	return &Loader{
		Config:  cfg,
		Service: buildServiceMetadata(),
	}, nil
}

// ResolveConfPath 应用回退规则确定要加载的配置目录/文件路径。
func ResolveConfPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	return defaultConfPath
}

func loadRuntimeConfig(confPath string) (*RuntimeConfig, error) {
	c := config.New(config.WithSource(file.NewSource(confPath)))
	if err := c.Load(); err != nil {
		return nil, BuildError{Stage: "load", Path: confPath, Err: err}
	}
	defer func() { _ = c.Close() }()

	var cfg RuntimeConfig
	if err := c.Scan(&cfg); err != nil {
		return nil, BuildError{Stage: "scan", Path: confPath, Err: err}
	}

	applyEnvOverrides(&cfg)
	fillDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, BuildError{Stage: "validate", Path: confPath, Err: err}
	}
	return &cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置文件中的特定字段。
// 环境变量为空时不覆盖，保留配置文件原值。
func applyEnvOverrides(cfg *RuntimeConfig) {
	if cfg == nil {
		return
	}
	if dsn := os.Getenv(envDatabaseURL); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if bucket := os.Getenv(envStorageBucket); bucket != "" {
		cfg.Storage.Bucket = bucket
	}
	if endpoint := os.Getenv(envPubSubEmulator); endpoint != "" {
		cfg.Messaging.PubSub.EmulatorEndpoint = endpoint
	}
}

// buildServiceMetadata 构建服务元信息，环境变量优先，缺省回退。
func buildServiceMetadata() ServiceMetadata {
	name := os.Getenv(envServiceName)
	if name == "" {
		name = "ingestion"
	}
	version := os.Getenv(envServiceVersion)
	if version == "" {
		version = "dev"
	}
	env := os.Getenv(envAppEnv)
	if env == "" {
		env = "development"
	}
	host, _ := os.Hostname()

	return ServiceMetadata{
		Name:        name,
		Version:     version,
		Environment: env,
		InstanceID:  host,
	}
}

// loadEnvFiles best-effort 加载配置相关的 .env 文件，失败时忽略。
func loadEnvFiles(confPath string) {
	files := envFileCandidates(confPath)
	if len(files) == 0 {
		return
	}
	_ = godotenv.Load(files...)
}

// envFileCandidates 按优先级返回存在的 .env 文件路径：
// confPath 所在目录优先，其次当前工作目录；.env.local 优先于 .env。
func envFileCandidates(confPath string) []string {
	dirs := orderedDirs(confPath)
	seen := make(map[string]struct{})
	var files []string
	for _, dir := range dirs {
		for _, name := range envFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			if _, ok := seen[candidate]; ok {
				continue
			}
			files = append(files, candidate)
			seen[candidate] = struct{}{}
		}
	}
	return files
}

func orderedDirs(confPath string) []string {
	var dirs []string
	appendUnique := func(path string) {
		if path == "" {
			return
		}
		clean := filepath.Clean(path)
		for _, existing := range dirs {
			if existing == clean {
				return
			}
		}
		dirs = append(dirs, clean)
	}

	if confPath != "" {
		if info, err := os.Stat(confPath); err == nil {
			if info.IsDir() {
				appendUnique(confPath)
			} else {
				appendUnique(filepath.Dir(confPath))
			}
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		appendUnique(cwd)
	}

	return dirs
}
