// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 browser 提供动作编排与结构化提取引擎。

# 概述

调用方用声明式的动作列表描述"在页面上做什么"，用字段到选择器的
映射描述"从页面上取什么"，browser 负责打开会话、按序执行、对齐
提取结果并保证会话释放。

# 核心接口

  - Provider / Instance / Page：引擎消费的浏览器原语，Launch → NewPage →
    Goto / Click / Fill / WaitFor / Screenshot / QueryAllCount /
    QueryAllText / Content → Close
  - Action：封闭的动作和类型（ClickAction / FillAction / NavigateAction /
    WaitAction / ScreenshotAction），由 Descriptor.Decode 解码得到
  - ResultCache / RunRecorder / Observer：可选的缓存、运行记录与指标接入点

# 主要能力

  - 会话：Acquire 打开实例并等待网络空闲，任何失败都以 NavigationError
    返回且不泄漏实例；Release 幂等，WithSession 在所有退出路径上释放
  - 动作解释：Interpreter.Run 严格按声明顺序执行，未知类型或缺参的
    描述符跳过且不写日志，首个失败以 ActionExecutionError 返回
  - 结构化提取：Extractor.Extract 以第一个定位器的匹配数决定记录数，
    其余字段按位置对齐，不足部分补空字符串
  - 门面：Automation 提供 Screenshot / ExtractHTML / RunActions /
    ExtractStructured / ExtractStructuredMany，并发实例数由 Limiter 控制
  - 工具：Tool 把四个操作注册为代理工具，错误以 types.ErrorCode 返回

# 内置实现

ChromeDPProvider 基于 chromedp 驱动本地或远程 Chrome，通过 CDP 生命周期
事件判定网络空闲。StaticProvider 基于 net/http 与 goquery，适用于服务端
渲染页面，支持链接跳转与表单提交，不支持截图。
*/
package browser
