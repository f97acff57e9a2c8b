package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// DefaultWebhookBaseURL 是自动化后端的默认地址。
const DefaultWebhookBaseURL = "https://automatewebhook.techfala.com.br"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Webhook WebhookConfig
	Trial   TrialConfig
	Flow    FlowConfig
	Voice   VoiceConfig
	Mock    MockConfig
	AI      AIConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	webhook, err := loadWebhookConfig()
	if err != nil {
		return nil, err
	}

	trial, err := loadTrialConfig()
	if err != nil {
		return nil, err
	}

	flow, err := loadFlowConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	mock, err := loadMockConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Webhook: webhook,
		Trial:   trial,
		Flow:    flow,
		Voice:   voice,
		Mock:    mock,
		AI:      ai,
		Log:     LogConfig{Env: getEnvOrDefault("LOG_ENV", "development")},
		Metrics: MetricsConfig{Namespace: getEnvOrDefault("METRICS_NAMESPACE", "iawizard")},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr("PORT", "8080")
	if err != nil {
		return ServerConfig{}, err
	}

	shutdown, err := parseDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:            addr,
		AllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout: shutdown,
	}, nil
}

func parseAddr(key, fallback string) (string, error) {
	port := getEnvOrDefault(key, fallback)

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid %s value: %q", key, port)
	}

	return ":" + port, nil
}

// WebhookConfig 描述自动化后端（webhook）的连接参数。
type WebhookConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func loadWebhookConfig() (WebhookConfig, error) {
	timeout, err := parseDurationEnv("WEBHOOK_TIMEOUT", 30*time.Second)
	if err != nil {
		return WebhookConfig{}, err
	}

	baseURL := strings.TrimRight(getEnvOrDefault("WEBHOOK_BASE_URL", DefaultWebhookBaseURL), "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return WebhookConfig{}, fmt.Errorf("invalid WEBHOOK_BASE_URL value %q: scheme must be http or https", baseURL)
	}

	return WebhookConfig{
		BaseURL: baseURL,
		Token:   strings.TrimSpace(os.Getenv("WEBHOOK_TOKEN")),
		Timeout: timeout,
	}, nil
}

// TrialConfig 控制试用会话的倒计时。
type TrialConfig struct {
	Duration     time.Duration
	TickInterval time.Duration
}

func loadTrialConfig() (TrialConfig, error) {
	duration, err := parseDurationEnv("TRIAL_DURATION", 15*time.Minute)
	if err != nil {
		return TrialConfig{}, err
	}
	tick, err := parseDurationEnv("TRIAL_TICK_INTERVAL", time.Second)
	if err != nil {
		return TrialConfig{}, err
	}
	if duration < time.Second {
		return TrialConfig{}, fmt.Errorf("invalid TRIAL_DURATION value %s: must be at least 1s", duration)
	}
	return TrialConfig{Duration: duration, TickInterval: tick}, nil
}

// FlowConfig 控制访客流程在内存中的保留时间。
type FlowConfig struct {
	IdleTimeout     time.Duration
	JanitorInterval time.Duration
}

func loadFlowConfig() (FlowConfig, error) {
	idle, err := parseDurationEnv("FLOW_IDLE_TIMEOUT", 2*time.Hour)
	if err != nil {
		return FlowConfig{}, err
	}
	janitor, err := parseDurationEnv("FLOW_JANITOR_INTERVAL", time.Minute)
	if err != nil {
		return FlowConfig{}, err
	}
	return FlowConfig{IdleTimeout: idle, JanitorInterval: janitor}, nil
}

// VoiceConfig 描述录音可视化与片段限制。
type VoiceConfig struct {
	VisualizerBars int
	FFTSize        int
	MaxClipBytes   int
}

func loadVoiceConfig() (VoiceConfig, error) {
	cfg := VoiceConfig{VisualizerBars: 48, FFTSize: 256, MaxClipBytes: 10 << 20}

	if v, err := parseOptionalIntEnv("VOICE_VISUALIZER_BARS"); err != nil {
		return VoiceConfig{}, err
	} else if v != nil {
		cfg.VisualizerBars = *v
	}
	if v, err := parseOptionalIntEnv("VOICE_FFT_SIZE"); err != nil {
		return VoiceConfig{}, err
	} else if v != nil {
		cfg.FFTSize = *v
	}
	if v, err := parseOptionalIntEnv("VOICE_MAX_CLIP_BYTES"); err != nil {
		return VoiceConfig{}, err
	} else if v != nil {
		cfg.MaxClipBytes = *v
	}

	if cfg.FFTSize < 2 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return VoiceConfig{}, fmt.Errorf("invalid VOICE_FFT_SIZE value %d: must be a power of two", cfg.FFTSize)
	}
	if cfg.VisualizerBars < 1 {
		return VoiceConfig{}, fmt.Errorf("invalid VOICE_VISUALIZER_BARS value %d", cfg.VisualizerBars)
	}
	return cfg, nil
}

// MockConfig 描述本地模拟自动化后端。
type MockConfig struct {
	Addr         string
	Token        string
	RedisURL     string
	HistoryLimit int
	HistoryTTL   time.Duration
}

func loadMockConfig() (MockConfig, error) {
	addr, err := parseAddr("MOCKHOOK_PORT", "8090")
	if err != nil {
		return MockConfig{}, err
	}

	ttl, err := parseDurationEnv("MOCKHOOK_HISTORY_TTL", 24*time.Hour)
	if err != nil {
		return MockConfig{}, err
	}

	limit := 40
	if v, err := parseOptionalIntEnv("MOCKHOOK_HISTORY_LIMIT"); err != nil {
		return MockConfig{}, err
	} else if v != nil && *v > 0 {
		limit = *v
	}

	return MockConfig{
		Addr:         addr,
		Token:        strings.TrimSpace(os.Getenv("MOCKHOOK_TOKEN")),
		RedisURL:     strings.TrimSpace(os.Getenv("REDIS_URL")),
		HistoryLimit: limit,
		HistoryTTL:   ttl,
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// LogConfig 描述日志环境。
type LogConfig struct {
	Env string
}

// MetricsConfig 描述指标命名空间。
type MetricsConfig struct {
	Namespace string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
