// Package chat 维护有界的多轮对话上下文：
// 把追问改写为可独立检索的查询，并在历史超限时
// 将旧消息压缩为摘要、保留最近的滑动窗口。
package chat
