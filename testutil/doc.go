// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 pageflow 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertRecordsAligned / AssertLogOrder
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual，
    支持超时轮询等待条件满足
  - 数据工具: MustJSON / MustParseJSON / TempArtifactDir

# 子包

  - testutil/mocks: MockProvider（浏览器 Provider），基于 goquery 的内存页面，
    支持调用计数（Launches / Closes / Peak）与错误注入
  - testutil/fixtures: 预置 HTML 页面、动作脚本与定位器

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithPage(fixtures.ItemsURL, fixtures.ItemsPage(3, 2))
	a := browser.NewAutomation(provider, browser.Config{ArtifactDir: testutil.TempArtifactDir(t)})
	records, err := a.ExtractStructured(ctx, fixtures.ItemsURL, fixtures.ItemLocators())
*/
package testutil
