// Package memory 维护会话级长期记忆：
// 对话完成后异步抽取事实/偏好/洞察，近重复去重并提升既有记忆的权重，
// 超限时按重要性剪枝，检索返回重要性最高的记忆并刷新访问时间。
package memory
