package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tagcache/tagcache/internal/cache"
	"github.com/tagcache/tagcache/internal/config"
	"github.com/tagcache/tagcache/internal/fslock"
	"github.com/tagcache/tagcache/internal/logging"
	"github.com/tagcache/tagcache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath       string
	namespace        string
	checkOnly        bool
	showVersion      bool
	cleanup          bool
	cleanupAge       time.Duration
	gcLinks          bool
	invalidateTags   []tagSpec
	invalidateName   string
	invalidateGlobal bool
}

// tagSpec 是 -invalidate 标志里的一项 type:id 组合。
type tagSpec struct {
	Type string
	ID   string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["namespaces"] = len(cfg.Namespaces)
		fields["codecs"] = config.NamespaceSummaries(cfg)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if !opts.hasMaintenanceAction() {
		fmt.Fprintln(stdErr, "未指定维护动作：-cleanup、-gc-links、-invalidate、-invalidate-name、-invalidate-global，或使用 -check-config")
		return 2
	}

	fslock.PollInterval = cfg.Global.LockPollInterval.DurationValue()

	runtime, err := config.BuildNamespaceRuntime(cfg, opts.namespace)
	if err != nil {
		fmt.Fprintf(stdErr, "解析命名空间失败: %v\n", err)
		return 1
	}

	store, err := cache.New(cache.Options{
		Root:                  cfg.Global.StoragePath,
		Namespace:             runtime.Name,
		Codec:                 runtime.Codec,
		DefaultLifetime:       runtime.Lifetime,
		LockTimeout:           cfg.Global.LockTimeout.DurationValue(),
		InvalidateLockTimeout: cfg.Global.InvalidateLockTimeout.DurationValue(),
		StripPrefixes:         cfg.Global.StripPrefixes,
		Logger:                logger,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	runID := uuid.NewString()
	fields := logging.BaseFields("maintenance", opts.configPath)
	fields["run_id"] = runID
	fields["namespace"] = store.Namespace()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("缓存存储就绪")

	return runMaintenance(context.Background(), store, logger, runID, opts)
}

// runMaintenance 按“失效 → 过期清理 → 链接回收”顺序执行维护动作，
// 本次失效留下的悬挂链接在同一次运行内即可被回收。
func runMaintenance(ctx context.Context, store *cache.Store, logger *logrus.Logger, runID string, opts cliOptions) int {
	for _, spec := range opts.invalidateTags {
		removed := store.InvalidateTag(ctx, spec.Type, spec.ID)
		fields := logging.InvalidateFields(spec.Type, spec.ID, removed)
		fields["run_id"] = runID
		logger.WithFields(fields).Info("标签失效完成")
		fmt.Fprintf(stdOut, "invalidate %s:%s removed=%d\n", spec.Type, spec.ID, removed)
	}

	if opts.invalidateName != "" {
		removed := store.InvalidateNamed(ctx, opts.invalidateName)
		fields := logging.InvalidateFields("name", opts.invalidateName, removed)
		fields["run_id"] = runID
		logger.WithFields(fields).Info("键名失效完成")
		fmt.Fprintf(stdOut, "invalidate-name %s removed=%d\n", opts.invalidateName, removed)
	}

	if opts.invalidateGlobal {
		removed := store.InvalidateGlobal(ctx)
		fields := logging.InvalidateFields("global", "0", removed)
		fields["run_id"] = runID
		logger.WithFields(fields).Info("全局失效完成")
		fmt.Fprintf(stdOut, "invalidate-global removed=%d\n", removed)
	}

	if opts.cleanup {
		count, freed, err := store.CleanupExpired(ctx, opts.cleanupAge)
		if err != nil {
			fmt.Fprintf(stdErr, "过期清理失败: %v\n", err)
			return 1
		}
		fields := logging.SweepFields("cleanup_expired", count, freed)
		fields["run_id"] = runID
		logger.WithFields(fields).Info("过期条目清理完成")
		fmt.Fprintf(stdOut, "cleanup removed=%d bytes_freed=%d\n", count, freed)
	}

	if opts.gcLinks {
		removed, err := store.GCSymlinks(ctx)
		if err != nil {
			fmt.Fprintf(stdErr, "链接回收失败: %v\n", err)
			return 1
		}
		fields := logging.SweepFields("gc_symlinks", removed, 0)
		fields["run_id"] = runID
		logger.WithFields(fields).Info("悬挂链接回收完成")
		fmt.Fprintf(stdOut, "gc-links removed=%d\n", removed)
	}

	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("tagcache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag       string
		namespace        string
		checkOnly        bool
		showVer          bool
		cleanupAge       string
		gcLinks          bool
		invalidate       string
		invalidateName   string
		invalidateGlobal bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 TAGCACHE_CONFIG 覆盖）")
	fs.StringVar(&namespace, "namespace", "", "目标命名空间（默认取配置中的 DefaultNamespace）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringVar(&cleanupAge, "cleanup", "", "清理修改时间早于指定年龄的条目，如 24h，0 表示按当前时刻判定")
	fs.BoolVar(&gcLinks, "gc-links", false, "回收悬挂的标签符号链接")
	fs.StringVar(&invalidate, "invalidate", "", "失效标签，格式 type:id，逗号分隔多个")
	fs.StringVar(&invalidateName, "invalidate-name", "", "按键名失效全部条目")
	fs.BoolVar(&invalidateGlobal, "invalidate-global", false, "失效带全局标签的条目")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("TAGCACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	opts := cliOptions{
		configPath:       path,
		namespace:        namespace,
		checkOnly:        checkOnly,
		showVersion:      showVer,
		gcLinks:          gcLinks,
		invalidateName:   invalidateName,
		invalidateGlobal: invalidateGlobal,
	}

	if cleanupAge != "" {
		age, err := time.ParseDuration(cleanupAge)
		if err != nil {
			return cliOptions{}, fmt.Errorf("解析 -cleanup 年龄失败: %w", err)
		}
		if age < 0 {
			return cliOptions{}, fmt.Errorf("-cleanup 年龄不能为负: %s", cleanupAge)
		}
		opts.cleanup = true
		opts.cleanupAge = age
	}

	if invalidate != "" {
		specs, err := parseTagSpecs(invalidate)
		if err != nil {
			return cliOptions{}, fmt.Errorf("解析 -invalidate 失败: %w", err)
		}
		opts.invalidateTags = specs
	}

	return opts, nil
}

// hasMaintenanceAction 判断本次运行是否请求了至少一个维护动作。
func (o cliOptions) hasMaintenanceAction() bool {
	return o.cleanup || o.gcLinks || len(o.invalidateTags) > 0 ||
		o.invalidateName != "" || o.invalidateGlobal
}

// parseTagSpecs 拆分逗号分隔的 type:id 列表，空白项直接跳过。
func parseTagSpecs(raw string) ([]tagSpec, error) {
	parts := strings.Split(raw, ",")
	specs := make([]tagSpec, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tagType, id, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(tagType) == "" {
			return nil, fmt.Errorf("标签格式应为 type:id，得到 %q", part)
		}
		specs = append(specs, tagSpec{
			Type: strings.TrimSpace(tagType),
			ID:   strings.TrimSpace(id),
		})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("未提供任何标签")
	}
	return specs, nil
}
