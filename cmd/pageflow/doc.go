// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 pageflow 命令行入口。

# 概述

cmd/pageflow 是一次性命令行工具：每条命令加载配置、装配
browser.Automation（Provider、结果缓存、运行历史、指标、遥测），
执行一次门面操作，以缩进 JSON 输出结果后释放全部资源。
错误写到 stderr，退出码为 1。

# 子命令

  - screenshot / html / run / extract：对应四个门面操作，
    extract 支持重复 --url 走批量抽取
  - tool：列出或调用 Agent 工具面（browser_* 四个工具）
  - history：查询或清理运行历史
  - migrate：运行历史表的 Schema 迁移
  - cache：按前缀清理结果缓存或查看统计
  - version、help

# 配置

--config 指定 YAML 文件，PAGEFLOW_ 前缀的环境变量覆盖文件值。
metrics.textfile_path 非空时，命令结束后把 Prometheus 指标写入该文件，
供 node-exporter textfile collector 采集。
*/
package main
