// Package types 提供 docqa 检索核心的统一类型定义：
// 文档块、会话记忆、聊天消息以及跨组件共享的错误模型。
package types
