// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理运行历史表（runs）的 Schema，支持 PostgreSQL、
MySQL 与 SQLite 三种数据库，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌，golang-migrate 负责版本化
执行。迁移器自行打开并持有数据库连接，Close 时由 golang-migrate 关闭。
SQLite 连接使用 glebarez/go-sqlite（纯 Go，驱动名 "sqlite"），
再交给 golang-migrate 的 sqlite3 驱动执行。
取消 ctx 会通过 GracefulStop 让 golang-migrate 在当前迁移完成后停止。

# 核心接口与类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/Close。
  - DefaultMigrator：Migrator 的默认实现。
  - Config：数据库类型、连接 URL、迁移表名、锁超时与 zap 日志。
  - CLI：面向终端的格式化输出，Run 按子命令分发，
    供 `pageflow migrate` 使用。

# 主要能力

  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL。
  - 辅助工具：ParseDatabaseType 解析类型字符串，BuildDatabaseURL
    按方言拼接连接 URL。
*/
package migration
