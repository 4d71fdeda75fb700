// Package rag 实现检索核心的查询侧管线：
// 双通道混合检索（向量 + 关键词）、RRF 排名融合、多样性重排、
// 语义重排、置信度评估与答案落地校验，以及送入生成模型的上下文组装。
//
// 会话隔离是硬性不变量：每个检索与删除操作都以 sessionID 为必选过滤参数，
// 不存在跨会话搜索或删除的代码路径。
package rag
