// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的浏览器自动化指标采集能力，覆盖
门面调用、动作、会话、抽取、缓存与数据库六个维度。

# 概述

Collector 实现 browser.Observer，由 Automation 在每次调用、每个
动作和每个会话的生命周期节点回调。指标通过 promauto.With 注册到
调用方提供的 Registerer，所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标。

# 主要能力

  - 调用指标：按 operation/provider/status 计数与耗时分布。
  - 动作指标：按 kind/status 计数，按 kind 统计耗时。
  - 会话指标：打开总数、当前存活数与生命周期分布。
  - 抽取指标：每次结构化抽取产生的记录数分布。
  - 缓存指标：结果缓存命中与未命中计数。
  - 数据库指标：运行历史库的活跃/空闲连接数 Gauge。
  - 文本导出：WriteTextfile 供一次性命令行运行写出指标快照。
*/
package metrics
