package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"MarketCrew/internal/agent"
	"MarketCrew/internal/config"
	"MarketCrew/internal/crew"
	xerrors "MarketCrew/internal/errors"
	"MarketCrew/internal/llm/openai"
	"MarketCrew/internal/observability/alerting"
	"MarketCrew/internal/report"
	"MarketCrew/internal/tool"
	"MarketCrew/internal/tool/scraper"
	"MarketCrew/internal/tool/serper"
	"MarketCrew/pkg/logger"
)

const defaultTopic = "Applications of Generative AI in Big Data Analytics"

// main 是市场调研流水线的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\nERROR: %s: %s\n", xerrors.CodeOf(err), err.Error())
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(ctx context.Context) error {
	topic := flag.String("topic", defaultTopic, "research topic for the investment report")
	flag.Parse()

	// 凭证缺失时按约定打印缺失项并直接返回，不算运行失败。
	if missing := config.Missing(); len(missing) > 0 {
		fmt.Println("ERROR: Missing required environment variables:")
		for _, name := range missing {
			fmt.Printf("  - %s\n", name)
		}
		fmt.Println("\nPlease set these variables in your environment before running.")
		return nil
	}

	if strings.TrimSpace(*topic) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "调研主题不能为空")
	}

	cfg, err := config.Load()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeConfigurationMissing, err, "加载配置失败")
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Audit: logger.AuditConfig{
			Enabled: cfg.Log.Audit.Enabled,
			Path:    cfg.Log.Audit.Path,
		},
	}); err != nil {
		return xerrors.Wrap(xerrors.CodeConfigurationMissing, err, "初始化日志失败")
	}

	pipeline, err := buildCrew(cfg, *topic)
	if err != nil {
		return err
	}

	banner := strings.Repeat("=", 60)
	fmt.Printf("\n%s\nStarting Market Research for: %s\n%s\n\n", banner, *topic, banner)

	result, err := pipeline.Kickoff(ctx)
	if err != nil {
		return err
	}

	if err := report.Write(cfg.Runtime.ReportPath, result); err != nil {
		return err
	}

	fmt.Printf("\n%s\nReport saved to: %s\n%s\n", banner, cfg.Runtime.ReportPath, banner)
	return nil
}

// buildCrew 按配置组装工具、智能体与任务序列。
func buildCrew(cfg *config.Config, topic string) (*crew.Crew, error) {
	llmClient, err := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout(),
		MaxRetries:  cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	search, err := serper.NewSearch(serper.Config{
		APIKey:     cfg.Search.APIKey,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    cfg.Runtime.ToolTimeout(),
		MaxRetries: cfg.Runtime.ToolMaxRetries,
	})
	if err != nil {
		return nil, err
	}
	scrape := scraper.NewScraper(scraper.Config{
		Timeout:    cfg.Runtime.ToolTimeout(),
		MaxRetries: cfg.Runtime.ToolMaxRetries,
	})

	toolbox := map[string]tool.Invoker{
		search.Name(): search,
		scrape.Name(): scrape,
	}

	agents := make(map[string]*agent.Agent, len(cfg.Crew.Agents))
	for _, def := range cfg.Crew.Agents {
		tools := make([]tool.Invoker, 0, len(def.Tools))
		for _, name := range def.Tools {
			invoker, ok := toolbox[name]
			if !ok {
				return nil, xerrors.New(xerrors.CodeInvalidArgument,
					fmt.Sprintf("智能体 %s 引用了未知工具: %s", def.Name, name))
			}
			tools = append(tools, invoker)
		}
		agents[def.Name] = agent.New(
			agent.Definition{
				Role:      def.Role,
				Goal:      def.Goal,
				Backstory: def.Backstory,
			},
			llmClient,
			agent.WithTools(tools...),
			agent.WithMaxSteps(def.MaxSteps),
			agent.WithLLMTimeout(cfg.LLM.Timeout()),
		)
	}

	tasks := make([]*crew.Task, 0, len(cfg.Crew.Tasks))
	for _, def := range cfg.Crew.Tasks {
		executor, ok := agents[def.Agent]
		if !ok {
			return nil, xerrors.New(xerrors.CodeInvalidArgument,
				fmt.Sprintf("任务引用了未定义的智能体: %s", def.Agent))
		}
		description := strings.ReplaceAll(def.Description, "{topic}", topic)
		task, err := crew.NewTask(description, def.ExpectedOutput, executor)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	dispatcher := alerting.NewFanout(alerting.NewLogNotifier(nil))
	return crew.New(tasks, crew.WithAlertDispatcher(dispatcher)), nil
}
