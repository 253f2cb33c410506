// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的结果缓存，供 browser.Automation 复用
HTML 与结构化提取结果。

# 核心类型

  - Manager：持有 go-redis 客户端，提供 Get/Set/Delete 与
    GetJSON/SetJSON，满足 browser.ResultCache 接口。
  - Config：地址、密码、连接池、默认 TTL 与健康检查间隔。
    FromAppConfig 由 config.CacheConfig 生成。
  - Stats：由 INFO 与 DBSIZE 汇总的命中、内存与连接统计。

# 主要能力

  - PurgePrefix 通过 SCAN 分批删除指定前缀的键，
    供 `pageflow cache purge` 使用。
  - 未命中返回 ErrCacheMiss，关闭后返回 ErrClosed。
*/
package cache
