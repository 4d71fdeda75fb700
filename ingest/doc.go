// Package ingest 实现文档摄取侧管线：
// 章节树解析、按 token 预算的层级分块（表格→段落→句子→字符窗口）、
// 元数据提取（标题/章节/关键词/富化内容）、图片归组与就近挂载，
// 以及独立于请求路径的有界工作池摄取调度。
package ingest
