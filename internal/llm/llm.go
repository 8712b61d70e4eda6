package llm

import "context"

// Request 描述一次推理调用的完整输入。System 承载角色设定，
// User 承载任务描述、上下文与工具记录。
type Request struct {
	System string
	User   string
}

// Response 是推理服务返回的完整文本。
type Response struct {
	Content string
}

// Client 定义了调用文本生成能力的统一接口。
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
