// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 pageflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 browser、config、
cmd 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - ToolSchema       ：工具定义（name + description + JSON Schema parameters）
  - ToolResult       ：工具执行结果，失败时携带 ErrorCode
  - JSONSchema       ：JSON Schema 定义与构建器（NewObjectSchema 等）

# 主要能力

  - Context 传播：WithTraceID / WithRunID / WithSessionID
  - 错误工具链：GetErrorCode / IsErrorCode / IsRetryable（支持 errors.As 链）
*/
package types
