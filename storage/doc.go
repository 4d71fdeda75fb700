// Package storage 关系持久层：
// 会话、文档、消息、摘要与记忆的元数据通过仓库接口读写，
// 核心逻辑不直接触碰底层存储调用。未知 ID 映射为 NOT_FOUND 域错误。
package storage
