// Package llm 定义检索核心消费的外部模型能力接口
// （嵌入、补全、流式补全、Token 计数），以及每个外部调用边界
// 使用的弹性装饰器：熔断器、重试策略、限速器。
// 本包只依赖抽象能力，不绑定任何具体供应商的协议格式。
package llm
