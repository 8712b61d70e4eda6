package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 进程启动时读取的环境变量。凭证缺失时不允许开始任何流水线运行。
const (
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvSerperKey  = "SERPER_API_KEY"
	EnvModel      = "OPENAI_MODEL"
	EnvConfigPath = "MARKETCREW_CONFIG"
)

const (
	defaultModel       = "gpt-4"
	defaultTemperature = 0.7
	defaultReportPath  = "market_research_report.md"
)

// Config 汇总了一次流水线运行所需的全部配置，加载完成后不再修改。
type Config struct {
	LLM     LLMConfig      `yaml:"llm"`
	Search  SearchConfig   `yaml:"search"`
	Runtime RuntimeConfig  `yaml:"runtime"`
	Log     LogConfig      `yaml:"log"`
	Crew    CrewDefinition `yaml:"crew"`
}

// LLMConfig 描述调用大模型推理服务的方式。
type LLMConfig struct {
	APIKey         string  `yaml:"-"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// Timeout 返回单次推理调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SearchConfig 描述搜索能力的凭证与返回数量。
type SearchConfig struct {
	APIKey     string `yaml:"-"`
	MaxResults int    `yaml:"max_results"`
}

// RuntimeConfig 汇总运行期的通用参数。
type RuntimeConfig struct {
	ReportPath         string `yaml:"report_path"`
	ToolTimeoutSeconds int    `yaml:"tool_timeout_seconds"`
	ToolMaxRetries     int    `yaml:"tool_max_retries"`
}

// ToolTimeout 返回单次工具调用的超时时间。
func (c RuntimeConfig) ToolTimeout() time.Duration {
	if c.ToolTimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.ToolTimeoutSeconds) * time.Second
}

// LogConfig 控制结构化日志与审计日志输出。
type LogConfig struct {
	Level  string         `yaml:"level"`
	Format string         `yaml:"format"`
	Audit  AuditLogConfig `yaml:"audit"`
}

// AuditLogConfig 控制审计日志文件。
type AuditLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CrewDefinition 描述流水线中的角色与任务编排，可通过 YAML 文件覆盖内置默认值。
type CrewDefinition struct {
	Agents []AgentDefinition `yaml:"agents"`
	Tasks  []TaskDefinition  `yaml:"tasks"`
}

// AgentDefinition 描述一个角色化的智能体。
type AgentDefinition struct {
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Tools     []string `yaml:"tools"`
	MaxSteps  int      `yaml:"max_steps"`
}

// TaskDefinition 描述一个顺序执行的任务。Description 中的 {topic} 占位符
// 会在运行前替换为用户提供的调研主题。
type TaskDefinition struct {
	Agent          string `yaml:"agent"`
	Description    string `yaml:"description"`
	ExpectedOutput string `yaml:"expected_output"`
}

// Missing 返回当前环境中缺失的必需变量，为空表示可以启动运行。
func Missing() []string {
	var missing []string
	for _, name := range []string{EnvOpenAIKey, EnvSerperKey} {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Load 从环境变量与可选的 YAML 文件构建配置。
func Load() (*Config, error) {
	cfg := &Config{
		LLM: LLMConfig{
			APIKey:      strings.TrimSpace(os.Getenv(EnvOpenAIKey)),
			Temperature: defaultTemperature,
		},
		Search: SearchConfig{
			APIKey: strings.TrimSpace(os.Getenv(EnvSerperKey)),
		},
	}

	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	// 模型选择以环境变量为准，配置文件只在未设置时生效。
	if model := strings.TrimSpace(os.Getenv(EnvModel)); model != "" {
		cfg.LLM.Model = model
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile 读取 YAML 配置并覆盖默认编排。凭证只能来自环境变量。
func (c *Config) mergeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModel
	}
	if c.LLM.Temperature < 0 {
		c.LLM.Temperature = 0
	}
	if c.LLM.Temperature > 2 {
		c.LLM.Temperature = 2
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 2
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 5
	}
	if c.Runtime.ReportPath == "" {
		c.Runtime.ReportPath = defaultReportPath
	}
	if c.Runtime.ToolMaxRetries <= 0 {
		c.Runtime.ToolMaxRetries = 2
	}
	if len(c.Crew.Agents) == 0 && len(c.Crew.Tasks) == 0 {
		c.Crew = DefaultCrew()
	}
	for i := range c.Crew.Agents {
		if c.Crew.Agents[i].MaxSteps <= 0 {
			c.Crew.Agents[i].MaxSteps = 8
		}
	}
}

func (c *Config) validate() error {
	if len(c.Crew.Tasks) == 0 {
		return fmt.Errorf("编排中没有任何任务")
	}
	agents := make(map[string]bool, len(c.Crew.Agents))
	for _, ag := range c.Crew.Agents {
		if strings.TrimSpace(ag.Name) == "" {
			return fmt.Errorf("存在未命名的智能体定义")
		}
		if agents[ag.Name] {
			return fmt.Errorf("智能体名称重复: %s", ag.Name)
		}
		agents[ag.Name] = true
	}
	for i, task := range c.Crew.Tasks {
		if !agents[task.Agent] {
			return fmt.Errorf("任务 %d 引用了未定义的智能体: %s", i, task.Agent)
		}
		if strings.TrimSpace(task.Description) == "" {
			return fmt.Errorf("任务 %d 缺少描述", i)
		}
	}
	return nil
}
