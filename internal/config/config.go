// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Voice         VoiceConfig         `mapstructure:"voice"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Memory        MemoryConfig        `mapstructure:"memory"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdminConfig 控制 /api/v1/admin/* 路由的鉴权。
type AdminConfig struct {
	TokenHash   string `mapstructure:"token_hash"` // bcrypt hash of the admin bearer token
	JWTSecret   string `mapstructure:"jwt_secret"`
	ExpireHours int    `mapstructure:"jwt_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers      string `mapstructure:"brokers"`
	UtilityTopic string `mapstructure:"utility_topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"` // TTS audio cache bucket
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置，区分 primary 与 fast 两档路由目标。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Primary    string              `mapstructure:"primary_model"`
	Fast       string              `mapstructure:"fast_model"`
	Cheap      string              `mapstructure:"cheap_model"` // used for coreference rewrite + summarisation
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与引用包裹格式。
type LLMPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// VoiceConfig 配置外部 STT/TTS 适配器端点（薄封装，内部逻辑不在本仓库范围内）。
type VoiceConfig struct {
	STTBaseURL string `mapstructure:"stt_base_url"`
	TTSBaseURL string `mapstructure:"tts_base_url"`
	APIKey     string `mapstructure:"api_key"`
}

// RetrievalConfig 配置混合检索的静态权重与并发超时。
type RetrievalConfig struct {
	RRFConstant        int                `mapstructure:"rrf_constant"` // k in 1/(k+rank)
	UtilityAlpha       float64            `mapstructure:"utility_alpha"`
	UtilityLearnRate   float64            `mapstructure:"utility_learning_rate"`
	AuthorityWeights   map[string]float64 `mapstructure:"authority_weights"`
	GraphExpandDepth   int                `mapstructure:"graph_expand_depth"`
	VectorTimeoutMS    int                `mapstructure:"vector_timeout_ms"`
	LexicalTimeoutMS   int                `mapstructure:"lexical_timeout_ms"`
	GraphTimeoutMS     int                `mapstructure:"graph_timeout_ms"`
	EmbeddingTimeoutMS int                `mapstructure:"embedding_timeout_ms"`
	LLMTimeoutMS       int                `mapstructure:"llm_timeout_ms"`
}

// MemoryConfig 配置会话存储 TTL 与上下文窗口大小。
type MemoryConfig struct {
	SessionTTLHours  int `mapstructure:"session_ttl_hours"`
	MaxActiveRegs    int `mapstructure:"max_active_regulations"`
	MaxContextTurns  int `mapstructure:"max_context_turns"`
	SummarizeAfter   int `mapstructure:"summarize_after_turns"`
}

// KnowledgeConfig 配置实务知识库 YAML 数据目录。
type KnowledgeConfig struct {
	Dir string `mapstructure:"dir"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
