// Package config 提供 docqa 的统一配置加载。
// 优先级: 默认值 → YAML 文件 → 环境变量（前缀 DOCQA）。
package config
