package generator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrModelInvocation 模型调用失败（网络、服务端错误或超时）。
var ErrModelInvocation = errors.New("model invocation failed")

// Agent 负责调用模型并解析回复。每次只调用一次，不重试。
type Agent struct {
	llm     LLMClient
	timeout time.Duration
}

func NewAgent(llm LLMClient, timeout time.Duration) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm, timeout: timeout}, nil
}

// Generate 发送 prompt 并返回解析结果；回复无法解析不算错误。
func (a *Agent) Generate(ctx context.Context, prompt Prompt) (Result, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrModelInvocation, err)
	}
	return ParseResult(raw), nil
}
