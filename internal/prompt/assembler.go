package prompt

import (
	"fmt"
	"strings"

	"github.com/aihub/rag-gateway/internal/retrieval"
)

// 系统指令：只允许基于提供的上下文回答
const systemInstruction = "你是一个知识库问答助手。只能根据下面提供的参考内容回答问题。" +
	"如果参考内容不足以支撑答案，明确说明你不知道，不要编造。"

// RefusalMessage 严格模式下无足够依据时的固定回复
const RefusalMessage = "知识库中没有找到与该问题相关的内容，无法回答。请尝试换一种问法，或确认相关文档已经入库。"

// 上下文条目之间的分隔符
const contextSeparator = "\n\n---\n\n"

// Message 发往生成服务的单条消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GroundedRequest 带上下文依据的生成请求
type GroundedRequest struct {
	System string
	User   string
}

// Messages 转换为消息序列
func (g *GroundedRequest) Messages() []Message {
	return []Message{
		{Role: "system", Content: g.System},
		{Role: "user", Content: g.User},
	}
}

// Assembler 把问题和检索结果组装成生成请求
// 纯数据变换，没有I/O，也没有部分失败
type Assembler struct{}

// NewAssembler 创建组装器
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble 组装生成请求
// 检索结果为空返回(nil, false)表示拒答：严格模式下绝不把无依据的问题转发给生成服务
func (a *Assembler) Assemble(question string, result *retrieval.Result) (*GroundedRequest, bool) {
	if result == nil || result.Empty() {
		return nil, false
	}

	var sb strings.Builder
	for i, c := range result.Candidates {
		if i > 0 {
			sb.WriteString(contextSeparator)
		}
		// 引用编号按排名顺序从1开始，保持稳定
		sb.WriteString(fmt.Sprintf("[%d] (来源文档: %s)\n%s", i+1, c.DocID, c.Text))
	}

	user := fmt.Sprintf("问题：%s\n\n参考内容：\n%s", question, sb.String())

	return &GroundedRequest{
		System: systemInstruction,
		User:   user,
	}, true
}
