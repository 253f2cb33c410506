// Package tlsutil 提供集中式 TLS 配置，
// 为静态 Provider 的 HTTP 传输和 Redis 结果缓存提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
