// Package config 提供 pageflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → PAGEFLOW_ 前缀环境变量 的顺序叠加，
// 最后由 Validate 与自定义验证器检查。
package config
